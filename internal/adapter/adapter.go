// Package adapter implements the datagram-device collaborator the core
// endpoint consumes: IPv4 encapsulation/decapsulation of TCP segments over a
// point-to-point link, with optional Bernoulli loss injection and pcap
// capture.
package adapter

import (
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/gopherlabs/mintcp/internal/ipv4"
	"github.com/gopherlabs/mintcp/internal/tcp"
)

// Config mirrors the source/destination and loss-rate knobs of an
// FdAdapter: which address pair this endpoint binds to, and (for testing)
// the probability that an outgoing or incoming segment is dropped.
type Config struct {
	Source      netip.AddrPort
	Destination netip.AddrPort

	// Listening binds Source to any peer address: the destination address
	// in Source is ignored for filtering until the first valid SYN arrives,
	// at which point the peer's address/port is latched into Source's
	// address and Destination, mirroring INADDR_ANY accept-and-learn.
	Listening bool

	// LossUp/LossDown are Bernoulli drop probabilities in [0, 1] applied by
	// WithLoss, for writes (up to the peer) and reads (down from the peer)
	// respectively.
	LossUp   float64
	LossDown float64
}

// Transport is the raw datagram I/O an Adapter sits on top of: a whole
// IPv4 datagram in, a whole IPv4 datagram out. TUN devices and a
// loopback-UDP stand-in both implement it.
type Transport interface {
	ReadPacket(buf []byte) (int, error)
	WritePacket(data []byte) (int, error)
}

// Adapter converts between tcp.Segment values and IPv4-encapsulated wire
// bytes over a Transport, filtering by the configured source/destination.
// Source/Destination mutate once, at accept time, when Listening is true;
// cfgMu guards that transition against the concurrent WriteSegment caller.
type Adapter struct {
	transport Transport

	cfgMu     sync.Mutex
	cfg       Config
	listening bool
}

// New wraps transport with IPv4 encapsulation governed by cfg.
func New(transport Transport, cfg Config) *Adapter {
	return &Adapter{transport: transport, cfg: cfg, listening: cfg.Listening}
}

// ReadSegment reads one datagram and attempts to decode a TCP segment
// addressed to cfg.Source from cfg.Destination. Parse failures, checksum
// failures, and segments not matching the configured address pair are
// reported as ok=false with a nil error: per the adapter contract they are
// dropped silently, not treated as I/O failures. While Listening, the
// destination address is not yet filtered on; the first valid SYN latches
// the peer's address/port as Destination and clears Listening, mirroring
// binding to INADDR_ANY and discovering the peer on accept.
func (a *Adapter) ReadSegment(buf []byte) (seg tcp.Segment, ok bool, err error) {
	n, err := a.transport.ReadPacket(buf)
	if err != nil {
		return tcp.Segment{}, false, fmt.Errorf("adapter: read: %w", err)
	}
	data := buf[:n]

	hdr, payload, perr := ipv4.Parse(data)
	if perr != nil || hdr.Protocol != ipv4.ProtoTCP {
		return tcp.Segment{}, false, nil
	}

	srcAddr, ok1 := netip.AddrFromSlice(hdr.Src.To4())
	dstAddr, ok2 := netip.AddrFromSlice(hdr.Dst.To4())
	if !ok1 || !ok2 {
		return tcp.Segment{}, false, nil
	}

	pseudo := ipv4.PseudoHeaderChecksum(hdr.Src, hdr.Dst, ipv4.ProtoTCP, len(payload))
	seg, serr := tcp.ParseSegment(payload, pseudo)
	if serr != nil {
		return tcp.Segment{}, false, nil
	}

	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()

	if seg.DstPort != a.cfg.Source.Port() {
		return tcp.Segment{}, false, nil
	}

	if a.listening {
		if !seg.Sender.SYN || seg.Reset {
			return tcp.Segment{}, false, nil
		}
		a.cfg.Source = netip.AddrPortFrom(dstAddr, a.cfg.Source.Port())
		a.cfg.Destination = netip.AddrPortFrom(srcAddr, seg.SrcPort)
		a.listening = false
		return seg, true, nil
	}

	if dstAddr != a.cfg.Source.Addr() {
		return tcp.Segment{}, false, nil
	}
	if srcAddr != a.cfg.Destination.Addr() || seg.SrcPort != a.cfg.Destination.Port() {
		return tcp.Segment{}, false, nil
	}

	return seg, true, nil
}

// WriteSegment encapsulates seg as a TCP-over-IPv4 datagram addressed from
// cfg.Source to cfg.Destination and writes it to the transport.
func (a *Adapter) WriteSegment(seg tcp.Segment) error {
	a.cfgMu.Lock()
	src := a.cfg.Source.Addr().AsSlice()
	dst := a.cfg.Destination.Addr().AsSlice()
	seg.SrcPort = a.cfg.Source.Port()
	seg.DstPort = a.cfg.Destination.Port()
	a.cfgMu.Unlock()

	segLen := tcp.HeaderLen + len(seg.Sender.Payload)
	pseudo := ipv4.PseudoHeaderChecksum(net.IP(src), net.IP(dst), ipv4.ProtoTCP, segLen)
	wire := seg.Serialize(pseudo)
	datagram := ipv4.Build(net.IP(src), net.IP(dst), ipv4.ProtoTCP, wire)

	if _, err := a.transport.WritePacket(datagram); err != nil {
		return fmt.Errorf("adapter: write: %w", err)
	}
	return nil
}
