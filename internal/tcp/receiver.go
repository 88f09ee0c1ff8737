package tcp

import (
	"github.com/gopherlabs/mintcp/internal/reassembler"
	"github.com/gopherlabs/mintcp/internal/stream"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

// Receiver is the inbound half of a Transceiver: it captures the peer's ISN
// from the first SYN, hands payload to the Reassembler, and synthesizes
// ACK/window updates.
type Receiver struct {
	inbound     *stream.ByteStream
	reassembler *reassembler.Reassembler
	isn         *wrap.Wrap32
}

// NewReceiver constructs a Receiver bound to inbound and re, the shared
// Reassembler the Endpoint owns. The receive window reported in AckMessage
// always tracks inbound's own live capacity, so no separate capacity is
// stored here.
func NewReceiver(inbound *stream.ByteStream, re *reassembler.Reassembler) *Receiver {
	return &Receiver{inbound: inbound, reassembler: re}
}

// Receive processes an incoming SenderMessage: it captures the ISN on the
// first SYN, and once the ISN is known, computes the absolute stream offset
// and delivers payload to the reassembler.
func (r *Receiver) Receive(msg SenderMessage) {
	if msg.SYN && r.isn == nil {
		isn := msg.Seqno
		r.isn = &isn
	}
	if r.isn == nil {
		return
	}

	checkpoint := r.inbound.BytesPushed()
	absSeqno := msg.Seqno.Unwrap(*r.isn, checkpoint)

	var streamIndex int64
	if msg.SYN {
		streamIndex = 0
	} else {
		streamIndex = int64(absSeqno) - 1
	}

	r.reassembler.Insert(streamIndex, msg.Payload, msg.FIN, r.inbound)
}

// AckMessage synthesizes the current ReceiverMessage: Ackno is nil until the
// ISN is known; WindowSize always reflects current available capacity
// (capped to a 16-bit wire field).
func (r *Receiver) AckMessage() ReceiverMessage {
	window := r.inbound.AvailableCapacity()
	if window > 0xFFFF {
		window = 0xFFFF
	}
	if r.isn == nil {
		return ReceiverMessage{WindowSize: uint16(window)}
	}

	abs := uint64(1) + r.inbound.BytesPushed()
	if r.inbound.IsClosed() {
		abs++
	}
	ackno := wrap.Wrap(abs, *r.isn)
	return ReceiverMessage{Ackno: &ackno, WindowSize: uint16(window)}
}
