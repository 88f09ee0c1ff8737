// Package eventloop drives a tcp.Endpoint from the networking side: reading
// segments off a link, feeding writes the application thread queued up, and
// ticking the retransmission timer, translating the original poll(2)-based
// design into a channel/select loop per connection goroutine.
package eventloop

import (
	"context"
	"fmt"
	"time"

	"github.com/gopherlabs/mintcp/internal/tcp"
)

// Link is the segment-level transport the loop reads from and writes to —
// satisfied by *adapter.Adapter and *adapter.Lossy.
type Link interface {
	ReadSegment(buf []byte) (tcp.Segment, bool, error)
	WriteSegment(seg tcp.Segment) error
}

// Endpoint is the subset of *tcp.Endpoint the loop drives.
type Endpoint interface {
	Active() bool
	Receive(seg tcp.Segment)
	Tick(elapsedMs int)
	Push()
	MaybeSend() (tcp.Segment, bool)
}

// Loop runs one Endpoint against one Link until the endpoint goes
// inactive, the context is canceled, or a read from the link reports an I/O
// failure. Write failures do not end the loop (see flush).
type Loop struct {
	endpoint Endpoint
	link     Link
	// writeReady is signaled whenever the application has pushed more bytes
	// into the outbound stream, standing in for "outbound pipe readable".
	writeReady <-chan struct{}
	tickEvery  time.Duration
}

// New constructs a Loop. writeReady may be nil if the caller only drives the
// endpoint via Tick (e.g. a pure listener before accept).
func New(endpoint Endpoint, link Link, writeReady <-chan struct{}) *Loop {
	return &Loop{
		endpoint:   endpoint,
		link:       link,
		writeReady: writeReady,
		tickEvery:  tcp.TickInterval * time.Millisecond,
	}
}

// Run blocks until the endpoint is no longer Active, ctx is canceled, or a
// read from the link fails. Each suspension resumes on one of: an inbound segment, the
// write-ready signal, or a tick; each resumption runs to completion (Receive
// or Tick, then a flush of any segments the endpoint now wants to send)
// before the loop re-polls.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.tickEvery)
	defer ticker.Stop()

	readCh := make(chan tcp.Segment)
	errCh := make(chan error, 1)
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go l.readPump(readCtx, readCh, errCh)

	l.flush()
	for l.endpoint.Active() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return fmt.Errorf("eventloop: link read failed: %w", err)
		case seg := <-readCh:
			l.endpoint.Receive(seg)
		case <-l.writeReady:
			l.endpoint.Push()
		case <-ticker.C:
			l.endpoint.Tick(tcp.TickInterval)
		}
		l.flush()
	}
	return nil
}

// flush drains every segment the endpoint currently wants to emit. A write
// failure ends the flush early: the failed segment is not retried here, and
// the error is neither returned nor reported to Run.
func (l *Loop) flush() {
	for {
		seg, ok := l.endpoint.MaybeSend()
		if !ok {
			return
		}
		if err := l.link.WriteSegment(seg); err != nil {
			return
		}
	}
}

// readPump continuously decodes segments off the link and forwards them,
// exiting (and reporting the failure) only on a genuine I/O error; silently
// dropped segments (checksum failure, address mismatch) just loop again.
func (l *Loop) readPump(ctx context.Context, out chan<- tcp.Segment, errc chan<- error) {
	buf := make([]byte, 2*1024)
	for {
		if ctx.Err() != nil {
			return
		}
		seg, ok, err := l.link.ReadSegment(buf)
		if err != nil {
			select {
			case errc <- err:
			case <-ctx.Done():
			}
			return
		}
		if !ok {
			continue
		}
		select {
		case out <- seg:
		case <-ctx.Done():
			return
		}
	}
}
