//go:build linux

package adapter

import (
	"fmt"

	"github.com/songgao/water"
)

// TUN wraps a Linux TUN device as a Transport, reading and writing whole
// IPv4 datagrams with no link-layer framing.
type TUN struct {
	iface *water.Interface
}

// NewTUN opens (or creates) the named TUN device. An empty name lets the
// kernel assign one.
func NewTUN(name string) (*TUN, error) {
	cfg := water.Config{DeviceType: water.TUN}
	cfg.Name = name
	iface, err := water.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("adapter: open tun %q: %w", name, err)
	}
	return &TUN{iface: iface}, nil
}

// Name returns the kernel-assigned interface name.
func (t *TUN) Name() string {
	return t.iface.Name()
}

func (t *TUN) ReadPacket(buf []byte) (int, error) {
	return t.iface.Read(buf)
}

func (t *TUN) WritePacket(data []byte) (int, error) {
	return t.iface.Write(data)
}

func (t *TUN) Close() error {
	return t.iface.Close()
}
