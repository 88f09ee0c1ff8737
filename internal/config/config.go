// Package config loads the YAML settings that parameterize a mintcp
// connection: the TCP state machine's tunables (config.TCPConfig equivalent)
// and the IPv4/TUN adapter's addressing and loss simulation (config.FdAdapterConfig
// equivalent), mirroring the teacher's site-config.yml convention.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/gopherlabs/mintcp/internal/tcp"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

// TCPSettings mirrors original_source/utils/tcp_config.h's TCPConfig: the
// knobs that parameterize the endpoint's Sender/Receiver pair.
type TCPSettings struct {
	RTTimeoutMs     uint16  `yaml:"rt_timeout_ms"`
	RecvCapacity    int     `yaml:"recv_capacity"`
	SendCapacity    int     `yaml:"send_capacity"`
	FixedISN        *uint32 `yaml:"fixed_isn"`
	MaxRetxAttempts int     `yaml:"max_retx_attempts"`
}

// AdapterSettings mirrors FdAdapterConfig: source/destination addressing and
// the up/down loss probabilities used for testing over a lossy link.
type AdapterSettings struct {
	Source      string  `yaml:"source"`
	Destination string  `yaml:"destination"`
	LossUp      float64 `yaml:"loss_rate_up"`
	LossDown    float64 `yaml:"loss_rate_down"`
	Device      string  `yaml:"tun_device"`
}

// File is the top-level shape of a mintcp YAML config file.
type File struct {
	TCP     TCPSettings     `yaml:"tcp"`
	Adapter AdapterSettings `yaml:"adapter"`
}

const (
	// DefaultDevice matches original_source/utils/tcp_config.h's TUN_DFLT.
	DefaultDevice = "tun100"
	// DefaultLocalAddress matches LOCAL_ADDRESS_DFLT.
	DefaultLocalAddress = "169.254.100.9"

	maxConfigSize = 1 << 20
)

// Default returns a File populated with the same defaults original_source
// bakes into TCPConfig/FdAdapterConfig's member initializers.
func Default() File {
	return File{
		TCP: TCPSettings{
			RTTimeoutMs:     tcp.DefaultInitialRTO,
			RecvCapacity:    tcp.DefaultCapacity,
			SendCapacity:    tcp.DefaultCapacity,
			MaxRetxAttempts: tcp.MaxRetxAttempts,
		},
		Adapter: AdapterSettings{
			Source: fmt.Sprintf("%s:0", DefaultLocalAddress),
			Device: DefaultDevice,
		},
	}
}

// Load reads and parses path, refusing world-writable or oversized files the
// same way the teacher's site config loader does, and falling back to
// Default() on any error rather than failing the caller outright.
func Load(path string) (File, error) {
	cfg := Default()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: stat %s: %w", path, err)
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0002 != 0 {
		return cfg, fmt.Errorf("config: %s is world-writable, refusing to load", path)
	}
	if info.Size() > maxConfigSize {
		return cfg, fmt.Errorf("config: %s exceeds %d bytes", path, maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ToTCPConfig converts the YAML settings into the tcp.Config the endpoint
// constructor expects, applying DefaultConfig() for any zero-valued field.
func (f File) ToTCPConfig() tcp.Config {
	cfg := tcp.DefaultConfig()
	if f.TCP.RTTimeoutMs != 0 {
		cfg.InitialRTO = int(f.TCP.RTTimeoutMs)
	}
	if f.TCP.RecvCapacity != 0 {
		cfg.RecvCapacity = f.TCP.RecvCapacity
	}
	if f.TCP.SendCapacity != 0 {
		cfg.SendCapacity = f.TCP.SendCapacity
	}
	if f.TCP.FixedISN != nil {
		isn := wrap.New(*f.TCP.FixedISN)
		cfg.FixedISN = &isn
	}
	return cfg
}

// SourceAddrPort and DestinationAddrPort parse the adapter's textual
// addresses, returning an error if either is malformed.
func (f File) SourceAddrPort() (netip.AddrPort, error) {
	return netip.ParseAddrPort(f.Adapter.Source)
}

func (f File) DestinationAddrPort() (netip.AddrPort, error) {
	return netip.ParseAddrPort(f.Adapter.Destination)
}
