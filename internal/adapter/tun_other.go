//go:build !linux

package adapter

import "fmt"

// TUN is unimplemented outside Linux; use the loopback UDP transport for
// development and testing on other platforms.
type TUN struct{}

// NewTUN always fails on non-Linux platforms.
func NewTUN(name string) (*TUN, error) {
	return nil, fmt.Errorf("adapter: TUN devices are only supported on linux")
}

func (t *TUN) Name() string { return "" }

func (t *TUN) ReadPacket(buf []byte) (int, error) {
	return 0, fmt.Errorf("adapter: no tun on this platform")
}

func (t *TUN) WritePacket(data []byte) (int, error) {
	return 0, fmt.Errorf("adapter: no tun on this platform")
}

func (t *TUN) Close() error { return nil }
