package adapter

import (
	"math/rand"

	"github.com/gopherlabs/mintcp/internal/tcp"
)

// Lossy wraps an Adapter with independent Bernoulli loss on each direction,
// for exercising the sender's retransmission logic under a simulated
// unreliable link.
type Lossy struct {
	inner    *Adapter
	lossUp   float64
	lossDown float64
	rng      *rand.Rand
}

// NewLossy wraps inner, dropping writes with probability cfg.LossUp and
// reads with probability cfg.LossDown.
func NewLossy(inner *Adapter, cfg Config, seed int64) *Lossy {
	return &Lossy{
		inner:    inner,
		lossUp:   cfg.LossUp,
		lossDown: cfg.LossDown,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// WriteSegment drops the write with probability lossUp; a drop is reported
// as success, matching what a real lossy link looks like to the sender.
func (l *Lossy) WriteSegment(seg tcp.Segment) error {
	if l.lossUp > 0 && l.rng.Float64() < l.lossUp {
		return nil
	}
	return l.inner.WriteSegment(seg)
}

// ReadSegment drops the read with probability lossDown, reported as
// ok=false rather than an error.
func (l *Lossy) ReadSegment(buf []byte) (tcp.Segment, bool, error) {
	seg, ok, err := l.inner.ReadSegment(buf)
	if err != nil || !ok {
		return seg, ok, err
	}
	if l.lossDown > 0 && l.rng.Float64() < l.lossDown {
		return tcp.Segment{}, false, nil
	}
	return seg, true, nil
}
