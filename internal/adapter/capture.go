package adapter

import (
	"time"

	"github.com/gopherlabs/mintcp/internal/pcap"
)

// Captured wraps a Transport, mirroring every packet that crosses it into a
// pcap writer for offline inspection (e.g. with tcpdump/Wireshark).
type Captured struct {
	inner  Transport
	writer *pcap.Writer
}

// WithCapture wraps inner, writing every read/written packet to w. The
// caller must have already called w.WriteFileHeader(snapLen,
// pcap.LinkTypeRaw) — raw IPv4, since a TUN device has no link-layer
// framing to capture.
func WithCapture(inner Transport, w *pcap.Writer) *Captured {
	return &Captured{inner: inner, writer: w}
}

func (c *Captured) ReadPacket(buf []byte) (int, error) {
	n, err := c.inner.ReadPacket(buf)
	if err == nil && n > 0 {
		c.record(buf[:n])
	}
	return n, err
}

func (c *Captured) WritePacket(data []byte) (int, error) {
	n, err := c.inner.WritePacket(data)
	if err == nil {
		c.record(data)
	}
	return n, err
}

func (c *Captured) record(data []byte) {
	_ = c.writer.WritePacket(pcap.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}
