// Package tcp implements the endpoint state machine: a Sender/Receiver pair
// ("Transceiver") sharing one Reassembler and a pair of byte streams, plus
// the segment wire codec used to exchange them over an adapter.
package tcp

import (
	"github.com/gopherlabs/mintcp/internal/reassembler"
	"github.com/gopherlabs/mintcp/internal/stream"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

// Transceiver composes a Sender and Receiver sharing one inbound
// Reassembler, driven from a single segment stream.
type Transceiver struct {
	Sender   *Sender
	Receiver *Receiver
}

// Endpoint owns both application-facing byte streams and the Transceiver
// that drives them across the wire, from SYN through FIN/RST.
type Endpoint struct {
	Outbound *stream.ByteStream
	Inbound  *stream.ByteStream

	transceiver Transceiver
	reassembler *reassembler.Reassembler

	needAck bool
}

// NewEndpoint constructs an Endpoint with isn as the local initial sequence
// number used by its Sender (both dialers and listeners pass their own).
// The peer's ISN is not a parameter: the Receiver captures it from the
// first SYN that arrives.
func NewEndpoint(isn wrap.Wrap32, cfg Config) *Endpoint {
	outbound := stream.New(cfg.SendCapacity)
	inbound := stream.New(cfg.RecvCapacity)
	re := reassembler.New()
	return &Endpoint{
		Outbound: outbound,
		Inbound:  inbound,
		transceiver: Transceiver{
			Sender:   NewSender(isn, outbound, cfg),
			Receiver: NewReceiver(inbound, re),
		},
		reassembler: re,
	}
}

// Active reports whether the endpoint still has work to do: the inbound
// stream has not errored, and either the outbound side isn't fully sent,
// the inbound side isn't fully received, or segments remain in flight.
func (e *Endpoint) Active() bool {
	if e.Inbound.HasError() {
		return false
	}
	outboundDone := e.Outbound.IsFinished() && e.transceiver.Sender.SequenceNumbersInFlight() == 0
	inboundDone := e.Inbound.IsFinished()
	return !outboundDone || !inboundDone
}

// Receive processes an incoming segment: a reset segment (or an already
// errored inbound stream) latches the error and returns. Otherwise the
// receiver message feeds the sender's ACK handling, the sender message
// feeds the receiver's reassembly, and need_ack latches if the segment
// carried sequence-consuming bytes or synthesized an in-sequence SYN ack.
func (e *Endpoint) Receive(seg Segment) {
	if seg.Reset {
		e.Inbound.SetError(errConnectionReset)
		return
	}
	if e.Inbound.HasError() {
		return
	}

	e.transceiver.Sender.ReceiveAck(seg.Receiver)
	e.transceiver.Receiver.Receive(seg.Sender)

	if seg.Sender.SequenceLength() > 0 {
		e.needAck = true
	} else {
		ack := e.transceiver.Receiver.AckMessage()
		if ack.Ackno != nil && ack.Ackno.Raw() == seg.Sender.Seqno.Add(1).Raw() {
			e.needAck = true
		}
	}
}

// Tick advances the sender's retransmission timer by elapsedMs.
func (e *Endpoint) Tick(elapsedMs int) {
	e.transceiver.Sender.Tick(elapsedMs)
}

// Established reports whether the handshake has completed from this
// endpoint's perspective: its own SYN has been acknowledged and it has
// captured the peer's initial sequence number.
func (e *Endpoint) Established() bool {
	return e.transceiver.Sender.everAcked && e.transceiver.Receiver.isn != nil
}

// InFlight returns the number of sequence numbers currently outstanding,
// exposed for callers enforcing a max-retransmit-attempts policy alongside
// ConsecutiveRetransmissions.
func (e *Endpoint) InFlight() int {
	return e.transceiver.Sender.SequenceNumbersInFlight()
}

// ConsecutiveRetransmissions returns the sender's current retransmission
// streak; the core never acts on this itself (spec.md §7), but callers may
// enforce their own max-attempts policy with it.
func (e *Endpoint) ConsecutiveRetransmissions() int {
	return e.transceiver.Sender.ConsecutiveRetransmissions()
}

// Abort unclean-shuts-down the endpoint: both streams are marked errored, so
// Active() goes false and every segment MaybeSend still produces carries the
// reset flag. MaybeSend produces no segment for the reset by itself: a
// reset-flagged segment goes out only if the sender has a segment queued or
// a bare ACK is due.
func (e *Endpoint) Abort() {
	e.Outbound.SetError(errConnectionReset)
	e.Inbound.SetError(errConnectionReset)
}

// Push drains the outbound stream into new sender segments. Callers invoke
// this directly to kick off an active open (the first SYN, before any
// ackno exists to trigger the implicit refill in MaybeSend) and whenever
// the application writes more bytes to the outbound stream; MaybeSend also
// calls it implicitly once an ackno is available to report.
func (e *Endpoint) Push() {
	e.transceiver.Sender.Push()
}

// MaybeSend synthesizes the current receiver message, refills the sender
// from the outbound stream if that message carries an ackno, and asks the
// sender for a segment. If the sender has nothing to say but need_ack is
// latched, an empty (bare-ACK) message is used instead. At most one segment
// is produced per call.
func (e *Endpoint) MaybeSend() (Segment, bool) {
	ack := e.transceiver.Receiver.AckMessage()
	if ack.Ackno != nil {
		e.transceiver.Sender.Push()
	}

	senderMsg, ok := e.transceiver.Sender.MaybeSend()
	if !ok {
		if !e.needAck {
			return Segment{}, false
		}
		senderMsg = e.transceiver.Sender.SendEmptyMessage()
	}
	e.needAck = false

	return Segment{
		Sender:   senderMsg,
		Receiver: ack,
		Reset:    e.Outbound.HasError() || e.Inbound.HasError(),
	}, true
}
