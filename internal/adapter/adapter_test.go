package adapter

import (
	"net"
	"net/netip"
	"testing"

	"github.com/gopherlabs/mintcp/internal/tcp"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

func TestAdapterRoundTripOverLoopbackUDP(t *testing.T) {
	aAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	bAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}

	aConn, err := net.ListenUDP("udp4", aAddr)
	if err != nil {
		t.Fatalf("listen a: %v", err)
	}
	defer aConn.Close()
	bConn, err := net.ListenUDP("udp4", bAddr)
	if err != nil {
		t.Fatalf("listen b: %v", err)
	}
	defer bConn.Close()

	aTransport, err := NewUDPTransport(nil, bConn.LocalAddr().(*net.UDPAddr), 64)
	if err != nil {
		t.Fatalf("new transport a: %v", err)
	}
	defer aTransport.Close()

	bConn.Close() // free bConn's port so transport b can bind the address a sends to
	bTransport, err := NewUDPTransport(bConn.LocalAddr().(*net.UDPAddr), aTransport.conn.LocalAddr().(*net.UDPAddr), 64)
	if err != nil {
		t.Fatalf("new transport b: %v", err)
	}
	defer bTransport.Close()

	srcAddr := netip.MustParseAddrPort("10.0.0.1:1234")
	dstAddr := netip.MustParseAddrPort("10.0.0.2:5678")

	aAdapter := New(aTransport, Config{Source: srcAddr, Destination: dstAddr})
	bAdapter := New(bTransport, Config{Source: dstAddr, Destination: srcAddr})

	seg := tcp.Segment{
		Sender: tcp.SenderMessage{Seqno: wrap.New(1), Payload: []byte("hi")},
	}
	if err := aAdapter.WriteSegment(seg); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}

	buf := make([]byte, 2000)
	got, ok, err := bAdapter.ReadSegment(buf)
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if !ok {
		t.Fatal("expected a decoded segment")
	}
	if string(got.Sender.Payload) != "hi" {
		t.Fatalf("payload = %q, want hi", got.Sender.Payload)
	}
	if got.SrcPort != 1234 || got.DstPort != 5678 {
		t.Fatalf("ports = %d->%d, want 1234->5678", got.SrcPort, got.DstPort)
	}
}

func TestListeningAdapterLearnsPeerFromFirstSYN(t *testing.T) {
	aAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	bAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}

	aConn, err := net.ListenUDP("udp4", aAddr)
	if err != nil {
		t.Fatalf("listen a: %v", err)
	}
	defer aConn.Close()
	bConn, err := net.ListenUDP("udp4", bAddr)
	if err != nil {
		t.Fatalf("listen b: %v", err)
	}
	defer bConn.Close()

	clientTransport, err := NewUDPTransport(nil, bConn.LocalAddr().(*net.UDPAddr), 64)
	if err != nil {
		t.Fatalf("new transport client: %v", err)
	}
	defer clientTransport.Close()

	bConn.Close() // free bConn's port so the server transport can bind the address the client sends to
	serverTransport, err := NewUDPTransport(bConn.LocalAddr().(*net.UDPAddr), clientTransport.conn.LocalAddr().(*net.UDPAddr), 64)
	if err != nil {
		t.Fatalf("new transport server: %v", err)
	}
	defer serverTransport.Close()

	clientAddr := netip.MustParseAddrPort("10.0.0.1:4001")
	serverListenAddr := netip.MustParseAddrPort("0.0.0.0:4002")

	client := New(clientTransport, Config{Source: clientAddr, Destination: netip.MustParseAddrPort("10.0.0.2:4002")})
	server := New(serverTransport, Config{Source: serverListenAddr, Listening: true})

	if !server.listening {
		t.Fatal("expected server adapter to start in listening state")
	}

	syn := tcp.Segment{Sender: tcp.SenderMessage{Seqno: wrap.New(100), SYN: true}}
	if err := client.WriteSegment(syn); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}

	buf := make([]byte, 2000)
	got, ok, err := server.ReadSegment(buf)
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if !ok {
		t.Fatal("expected the listening adapter to accept the first SYN")
	}
	if !got.Sender.SYN {
		t.Fatal("expected the decoded segment to carry SYN")
	}
	if server.listening {
		t.Fatal("expected listening to clear after accepting the SYN")
	}
	if server.cfg.Destination.Addr() != clientAddr.Addr() || server.cfg.Destination.Port() != clientAddr.Port() {
		t.Fatalf("server learned destination %v, want %v", server.cfg.Destination, clientAddr)
	}

	nonSYN := tcp.Segment{Sender: tcp.SenderMessage{Seqno: wrap.New(200)}}
	if err := client.WriteSegment(nonSYN); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}
	if _, ok, err := server.ReadSegment(buf); err != nil || !ok {
		t.Fatalf("expected a second, already-bound read to succeed via the learned peer, got ok=%v err=%v", ok, err)
	}
}
