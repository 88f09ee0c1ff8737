package tcp

import "github.com/gopherlabs/mintcp/internal/wrap"

// Defaults for the parameters every Sender/Receiver pair is configured with.
const (
	DefaultCapacity   = 64000
	MaxPayloadSize    = 1000
	DefaultInitialRTO = 1000 // ms
	TickInterval      = 10   // ms
	MaxRetxAttempts   = 8
)

// Config parameterizes a Sender/Receiver pair.
type Config struct {
	// InitialRTO is the starting retransmission timeout, in milliseconds.
	InitialRTO int
	// RecvCapacity bounds the receiver's inbound byte stream.
	RecvCapacity int
	// SendCapacity bounds the sender's outbound byte stream.
	SendCapacity int
	// FixedISN pins the initial sequence number for deterministic tests.
	// When nil, the caller is responsible for generating a random one.
	FixedISN *wrap.Wrap32
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		InitialRTO:   DefaultInitialRTO,
		RecvCapacity: DefaultCapacity,
		SendCapacity: DefaultCapacity,
	}
}
