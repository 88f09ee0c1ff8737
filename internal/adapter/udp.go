package adapter

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// UDPTransport stands in for a TUN device in tests and local development: it
// carries whole IPv4-shaped datagrams (as produced by Adapter) over a
// connected UDP socket instead of a real point-to-point link. The outgoing
// TTL of the carrier UDP datagrams is set via golang.org/x/net/ipv4 to the
// value the caller passes.
type UDPTransport struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn
}

// NewUDPTransport opens a UDP socket bound to local and connected to
// remote, fixing the outgoing TTL.
func NewUDPTransport(local, remote *net.UDPAddr, ttl int) (*UDPTransport, error) {
	conn, err := net.DialUDP("udp4", local, remote)
	if err != nil {
		return nil, fmt.Errorf("adapter: dial udp: %w", err)
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetTTL(ttl); err != nil {
		conn.Close()
		return nil, fmt.Errorf("adapter: set ttl: %w", err)
	}
	return &UDPTransport{conn: conn, pc: pc}, nil
}

func (u *UDPTransport) ReadPacket(buf []byte) (int, error) {
	n, err := u.conn.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("adapter: udp read: %w", err)
	}
	return n, nil
}

func (u *UDPTransport) WritePacket(data []byte) (int, error) {
	n, err := u.conn.Write(data)
	if err != nil {
		return 0, fmt.Errorf("adapter: udp write: %w", err)
	}
	return n, nil
}

func (u *UDPTransport) Close() error {
	return u.conn.Close()
}
