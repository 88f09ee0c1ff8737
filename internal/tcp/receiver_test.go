package tcp

import (
	"testing"

	"github.com/gopherlabs/mintcp/internal/reassembler"
	"github.com/gopherlabs/mintcp/internal/stream"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

func newTestReceiver(capacity int) (*Receiver, *stream.ByteStream) {
	in := stream.New(capacity)
	re := reassembler.New()
	return NewReceiver(in, re), in
}

func TestReceiverNoAckBeforeSYN(t *testing.T) {
	r, _ := newTestReceiver(DefaultCapacity)
	ack := r.AckMessage()
	if ack.Ackno != nil {
		t.Fatal("ackno should be nil before any SYN observed")
	}
}

func TestReceiverCapturesISNAndDeliversPayload(t *testing.T) {
	r, in := newTestReceiver(DefaultCapacity)
	r.Receive(SenderMessage{Seqno: wrap.New(0x10000000), SYN: true})
	ack := r.AckMessage()
	if ack.Ackno == nil || ack.Ackno.Raw() != 0x10000001 {
		t.Fatalf("ackno after SYN = %v, want 0x10000001", ack.Ackno)
	}

	r.Receive(SenderMessage{Seqno: wrap.New(0x10000001), Payload: []byte("hello"), FIN: true})
	if got := string(in.Peek()); got != "hello" {
		t.Fatalf("inbound stream = %q, want hello", got)
	}
	if !in.IsClosed() {
		t.Fatal("inbound stream should close once FIN delivered")
	}
	ack2 := r.AckMessage()
	want := uint32(0x10000007) // 1 SYN + 5 payload + 1 FIN
	if ack2.Ackno.Raw() != want {
		t.Fatalf("ackno after payload+FIN = %x, want %x", ack2.Ackno.Raw(), want)
	}
}

func TestReceiverWindowReflectsAvailableCapacity(t *testing.T) {
	r, _ := newTestReceiver(10)
	r.Receive(SenderMessage{Seqno: wrap.New(0), SYN: true})
	r.Receive(SenderMessage{Seqno: wrap.New(1), Payload: []byte("abcd")})
	ack := r.AckMessage()
	if ack.WindowSize != 6 {
		t.Fatalf("window = %d, want 6", ack.WindowSize)
	}
}
