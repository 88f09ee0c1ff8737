// Package socket provides Socket, a two-goroutine wrapper that makes a
// tcp.Endpoint behave like a conventional blocking stream socket: one
// goroutine (the caller's) does Connect/Read/Write/Close, a background
// goroutine drives the endpoint's event loop.
package socket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gopherlabs/mintcp/internal/eventloop"
	"github.com/gopherlabs/mintcp/internal/tcp"
	"github.com/gopherlabs/mintcp/internal/wrap"
	"github.com/rs/xid"
)

// Socket is the application-facing handle to one TCP connection.
type Socket struct {
	id       xid.ID
	endpoint *tcp.Endpoint
	loop     *eventloop.Loop

	writeReady chan struct{}
	cancel     context.CancelFunc
	group      *errgroup.Group

	metrics *Metrics
	debug   debugState
}

// newSocket wires an endpoint to a link behind an event loop, but does not
// yet start the background goroutine.
func newSocket(endpoint *tcp.Endpoint, link eventloop.Link, metrics *Metrics) *Socket {
	writeReady := make(chan struct{}, 1)
	return &Socket{
		id:         xid.New(),
		endpoint:   endpoint,
		loop:       eventloop.New(endpoint, link, writeReady),
		writeReady: writeReady,
		metrics:    metrics,
	}
}

// Connect performs an active open: it pushes the initial SYN, starts the
// background event loop, and blocks until the handshake completes, ctx is
// canceled, or the endpoint dies.
func Connect(ctx context.Context, link eventloop.Link, isn wrap.Wrap32, cfg tcp.Config, metrics *Metrics) (*Socket, error) {
	ep := tcp.NewEndpoint(isn, cfg)
	s := newSocket(ep, link, metrics)
	ep.Push() // active open: enqueue the SYN before any ackno exists

	s.start(ctx)
	if err := s.waitEstablished(ctx); err != nil {
		s.Close()
		return nil, err
	}
	slog.Info("tcp: connection established", "id", s.id, "role", "client")
	if metrics != nil {
		metrics.connectionsOpened.Inc()
	}
	return s, nil
}

// ListenAndAccept performs a passive open: it starts the event loop
// immediately (so the first inbound SYN is captured) and blocks until a
// peer completes the handshake.
func ListenAndAccept(ctx context.Context, link eventloop.Link, isn wrap.Wrap32, cfg tcp.Config, metrics *Metrics) (*Socket, error) {
	ep := tcp.NewEndpoint(isn, cfg)
	s := newSocket(ep, link, metrics)

	s.start(ctx)
	if err := s.waitEstablished(ctx); err != nil {
		s.Close()
		return nil, err
	}
	slog.Info("tcp: connection established", "id", s.id, "role", "server")
	if metrics != nil {
		metrics.connectionsOpened.Inc()
	}
	return s, nil
}

func (s *Socket) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	s.group = g
	g.Go(func() error {
		return s.loop.Run(gctx)
	})
	if s.metrics != nil {
		g.Go(func() error {
			s.reportMetrics(gctx)
			return nil
		})
	}
}

// reportMetrics samples the endpoint's snapshot into the shared Metrics'
// gauges every tick, until ctx is canceled, matching the event loop's own
// tick cadence.
func (s *Socket) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(tcp.TickInterval * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.observe(s.ID(), s.endpoint.Snapshot())
		}
	}
}

func (s *Socket) waitEstablished(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.endpoint.Established() {
			return nil
		}
		if !s.endpoint.Active() {
			return fmt.Errorf("socket: connection failed before handshake completed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Write pushes data into the outbound stream and wakes the event loop.
// It never blocks on the network; a short write means the outbound stream's
// capacity was exceeded and the caller should retry with the remainder.
func (s *Socket) Write(data []byte) (int, error) {
	n := s.endpoint.Outbound.Push(data)
	select {
	case s.writeReady <- struct{}{}:
	default:
	}
	if s.metrics != nil {
		s.metrics.bytesSent.Add(float64(n))
	}
	return n, nil
}

// Read drains up to len(p) bytes from the inbound stream. It returns
// io.EOF once the inbound stream is finished and fully drained.
func (s *Socket) Read(p []byte) (int, error) {
	n := s.endpoint.Inbound.Read(p)
	if n > 0 {
		if s.metrics != nil {
			s.metrics.bytesReceived.Add(float64(n))
		}
		return n, nil
	}
	if s.endpoint.Inbound.IsFinished() {
		return 0, io.EOF
	}
	if s.endpoint.Inbound.HasError() {
		return 0, s.endpoint.Inbound.Err()
	}
	return 0, nil
}

// CloseWrite closes the outbound stream, triggering FIN emission once
// everything queued has been sent.
func (s *Socket) CloseWrite() {
	s.endpoint.Outbound.Close()
	select {
	case s.writeReady <- struct{}{}:
	default:
	}
}

// Close aborts the connection immediately through Endpoint.Abort if either
// stream is not yet finished (see Endpoint.Abort for when a reset-flagged
// segment reaches the peer) and stops the background goroutine.
func (s *Socket) Close() error {
	if !s.endpoint.Outbound.IsFinished() || !s.endpoint.Inbound.IsFinished() {
		s.endpoint.Abort()
		select {
		case s.writeReady <- struct{}{}:
		default:
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		_ = s.group.Wait()
	}

	s.debug.mu.Lock()
	if s.debug.srv != nil {
		_ = s.debug.srv.Close()
	}
	s.debug.mu.Unlock()

	if s.metrics != nil {
		s.metrics.connectionsClosed.Inc()
		s.metrics.forget(s.ID())
	}
	return nil
}

// WaitUntilClosed blocks until the background event loop goroutine exits,
// without forcing an abort — use once the caller knows the connection has
// reached EOF on both sides.
func (s *Socket) WaitUntilClosed() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// ID returns the connection's unique identifier, used to correlate logs and
// metric labels for this socket.
func (s *Socket) ID() string { return s.id.String() }

// ConsecutiveRetransmissions returns the sender's current run of back-to-back
// retransmissions without an intervening new ack, for callers enforcing a
// give-up policy such as MAX_RETX_ATTEMPTS.
func (s *Socket) ConsecutiveRetransmissions() int {
	return s.endpoint.ConsecutiveRetransmissions()
}

// Snapshot returns a point-in-time view of the endpoint's internal state.
func (s *Socket) Snapshot() tcp.Snapshot {
	return s.endpoint.Snapshot()
}

// Abort tears the connection down immediately through Endpoint.Abort and
// wakes the event loop; a segment still due then goes out with the reset
// flag, but no standalone RST is generated.
func (s *Socket) Abort() {
	s.endpoint.Abort()
	select {
	case s.writeReady <- struct{}{}:
	default:
	}
}
