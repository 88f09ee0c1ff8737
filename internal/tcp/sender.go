package tcp

import (
	"sort"

	"github.com/gopherlabs/mintcp/internal/stream"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

// Sender is the outbound half of a Transceiver: it segments an outbound
// ByteStream into SenderMessages, tracks what's outstanding, and drives
// retransmission.
type Sender struct {
	isn        wrap.Wrap32
	maxPayload int
	timer      *retransmissionTimer
	outbound   *stream.ByteStream

	started     bool
	finished    bool
	bytesPopped uint64

	outstanding     map[uint64]SenderMessage
	retransmitQueue []uint64

	lastAck   uint64
	everAcked bool
	window    uint16

	consecutiveRetransmissions int
}

// NewSender constructs a Sender bound to outbound, starting from isn, or
// from cfg.FixedISN when that is set.
func NewSender(isn wrap.Wrap32, outbound *stream.ByteStream, cfg Config) *Sender {
	if cfg.FixedISN != nil {
		isn = *cfg.FixedISN
	}
	return &Sender{
		isn:         isn,
		maxPayload:  MaxPayloadSize,
		timer:       newRetransmissionTimer(cfg.InitialRTO),
		outbound:    outbound,
		outstanding: make(map[uint64]SenderMessage),
		window:      1,
	}
}

// nextAbsSeqno returns the absolute sequence number of the next byte the
// sender would emit: started (as 0 or 1) + bytesPopped + finished (0 or 1).
func (s *Sender) nextAbsSeqno() uint64 {
	n := s.bytesPopped
	if s.started {
		n++
	}
	if s.finished {
		n++
	}
	return n
}

// effectiveWindow returns the peer's advertised window, or 1 when the peer
// has advertised a zero window (so exactly one probe byte may go out).
func (s *Sender) effectiveWindow() int {
	if s.window == 0 {
		return 1
	}
	return int(s.window)
}

// SequenceNumbersInFlight returns the sum of sequence lengths of all
// outstanding (unacknowledged) segments.
func (s *Sender) SequenceNumbersInFlight() int {
	total := 0
	for _, m := range s.outstanding {
		total += m.SequenceLength()
	}
	return total
}

// ConsecutiveRetransmissions returns the number of retransmissions sent
// since the last ACK that advanced lastAck, for callers enforcing a
// max-attempts policy.
func (s *Sender) ConsecutiveRetransmissions() int {
	return s.consecutiveRetransmissions
}

// Push builds and enqueues as many segments as the effective window allows,
// draining payload from the outbound stream. It emits SYN on the very first
// call and FIN once the outbound stream finishes, per the usual TCP sender
// state machine.
func (s *Sender) Push() {
	for {
		avail := s.effectiveWindow() - s.SequenceNumbersInFlight()
		if avail <= 0 {
			return
		}

		seqno := s.nextAbsSeqno()
		msg := SenderMessage{Seqno: wrap.Wrap(seqno, s.isn)}

		budget := avail
		if !s.started {
			msg.SYN = true
			budget--
		}
		if budget < 0 {
			budget = 0
		}
		if budget > s.maxPayload {
			budget = s.maxPayload
		}
		if budget > 0 {
			buf := make([]byte, budget)
			n := s.outbound.Read(buf)
			msg.Payload = buf[:n]
		}

		if s.outbound.IsFinished() && !s.finished && msg.SequenceLength() < avail {
			msg.FIN = true
		}

		if msg.SequenceLength() == 0 {
			return
		}

		if msg.SYN {
			s.started = true
		}
		s.bytesPopped += uint64(len(msg.Payload))
		if msg.FIN {
			s.finished = true
		}

		s.outstanding[seqno] = msg
		s.retransmitQueue = append(s.retransmitQueue, seqno)
		s.timer.start()
	}
}

// MaybeSend dequeues the next queued segment and returns it if still
// outstanding, skipping entries that have already been acknowledged. It
// returns false if nothing is pending.
func (s *Sender) MaybeSend() (SenderMessage, bool) {
	for len(s.retransmitQueue) > 0 {
		seqno := s.retransmitQueue[0]
		s.retransmitQueue = s.retransmitQueue[1:]
		if msg, ok := s.outstanding[seqno]; ok {
			return msg, true
		}
	}
	return SenderMessage{}, false
}

// ReceiveAck processes an incoming ReceiverMessage: updates the advertised
// window unconditionally, and if it carries an ackno, advances lastAck and
// retires acknowledged outstanding segments.
func (s *Sender) ReceiveAck(msg ReceiverMessage) {
	s.window = msg.WindowSize
	if msg.Ackno == nil {
		return
	}

	ackno := msg.Ackno.Unwrap(s.isn, s.lastAck)

	maxAckable := s.bytesPopped
	if s.started {
		maxAckable++
	}
	if s.finished {
		maxAckable++
	}
	if ackno > maxAckable {
		return
	}
	if s.everAcked && ackno <= s.lastAck {
		return
	}

	s.lastAck = ackno
	s.everAcked = true

	for seqno, m := range s.outstanding {
		if seqno+uint64(m.SequenceLength()) <= ackno {
			delete(s.outstanding, seqno)
		}
	}

	s.timer.resetBackoff()
	s.consecutiveRetransmissions = 0
	if len(s.outstanding) == 0 {
		s.timer.stop()
	} else {
		s.timer.resetElapsed()
	}
}

// SendEmptyMessage returns a bare segment carrying no flags or payload, for
// emitting a standalone ACK.
func (s *Sender) SendEmptyMessage() SenderMessage {
	return SenderMessage{Seqno: wrap.Wrap(s.nextAbsSeqno(), s.isn)}
}

// Tick advances the retransmission timer by elapsedMs. On expiry it
// re-enqueues the lowest-seqno outstanding segment; unless the last observed
// window was zero (a probe, not congestion), it also doubles the RTO and
// counts a retransmission.
func (s *Sender) Tick(elapsedMs int) {
	if !s.timer.tick(elapsedMs) {
		return
	}
	if len(s.outstanding) == 0 {
		return
	}

	seqnos := make([]uint64, 0, len(s.outstanding))
	for seqno := range s.outstanding {
		seqnos = append(seqnos, seqno)
	}
	sort.Slice(seqnos, func(i, j int) bool { return seqnos[i] < seqnos[j] })
	lowest := seqnos[0]
	s.retransmitQueue = append(s.retransmitQueue, lowest)

	if s.window != 0 {
		s.timer.backoff()
		s.consecutiveRetransmissions++
	}
}
