// Package stream implements ByteStream, a bounded producer/consumer byte
// queue with closure and error signaling. It is the substrate shared by the
// sender's outbound stream and the receiver's inbound stream.
package stream

import (
	"sync"
)

// chunkSize bounds how large an individual internal chunk grows before a
// fresh one is appended, so Pop never has to shift a multi-kilobyte slice.
const chunkSize = 4096

// ByteStream is a bounded FIFO of bytes shared between a single writer and a
// single reader. It is one value exposing both method families (Design
// Notes §9): Push/Close/SetError act as the writer, Peek/Pop act as the
// reader. All methods are safe to call concurrently from a writer goroutine
// and a reader goroutine.
type ByteStream struct {
	mu       sync.Mutex
	capacity int

	chunks    [][]byte // queued chunks, oldest first
	headOff   int      // read cursor into chunks[0]
	buffered  int      // total unpopped bytes across all chunks
	pushed    uint64
	popped    uint64
	closed    bool
	hasError  bool
	err       error
}

// New returns a ByteStream with the given capacity in bytes.
func New(capacity int) *ByteStream {
	return &ByteStream{capacity: capacity}
}

// Push appends up to AvailableCapacity() bytes of data, silently dropping
// any tail that doesn't fit, and returns how many bytes were accepted. Push
// after Close or SetError is a no-op.
func (s *ByteStream) Push(data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.hasError {
		return 0
	}

	avail := s.capacity - s.buffered
	if avail <= 0 {
		return 0
	}
	n := len(data)
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}
	data = data[:n]

	if len(s.chunks) > 0 {
		last := s.chunks[len(s.chunks)-1]
		if room := chunkSize - len(last); room > 0 {
			take := room
			if take > n {
				take = n
			}
			s.chunks[len(s.chunks)-1] = append(last, data[:take]...)
			data = data[take:]
		}
	}
	for len(data) > 0 {
		take := len(data)
		if take > chunkSize {
			take = chunkSize
		}
		chunk := make([]byte, take)
		copy(chunk, data[:take])
		s.chunks = append(s.chunks, chunk)
		data = data[take:]
	}

	s.buffered += n
	s.pushed += uint64(n)
	return n
}

// Close signals that no more bytes will be pushed. Idempotent.
func (s *ByteStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// SetError signals that the stream has suffered an unrecoverable error,
// observable from both the reader and writer side. Idempotent.
func (s *ByteStream) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasError {
		return
	}
	s.hasError = true
	s.err = err
}

// IsClosed reports whether Close has been called.
func (s *ByteStream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HasError reports whether SetError has been called.
func (s *ByteStream) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasError
}

// Err returns the error passed to SetError, or nil.
func (s *ByteStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// AvailableCapacity returns how many bytes can be pushed right now.
func (s *ByteStream) AvailableCapacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity - s.buffered
}

// BytesPushed returns the cumulative number of bytes ever pushed.
func (s *ByteStream) BytesPushed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushed
}

// BytesPopped returns the cumulative number of bytes ever popped.
func (s *ByteStream) BytesPopped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popped
}

// BytesBuffered returns the number of bytes currently buffered (pushed and
// not yet popped).
func (s *ByteStream) BytesBuffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffered
}

// IsFinished reports whether the stream is closed and fully drained.
func (s *ByteStream) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed && s.buffered == 0
}

// Peek returns a contiguous view of a prefix of the buffered bytes. It is
// non-empty whenever BytesBuffered() > 0. The returned slice aliases
// internal storage and is only valid until the next Pop or Push call.
func (s *ByteStream) Peek() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffered == 0 || len(s.chunks) == 0 {
		return nil
	}
	return s.chunks[0][s.headOff:]
}

// Pop discards up to min(n, BytesBuffered()) bytes from the front of the
// stream.
func (s *ByteStream) Pop(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.buffered {
		n = s.buffered
	}
	remaining := n
	for remaining > 0 && len(s.chunks) > 0 {
		head := s.chunks[0]
		avail := len(head) - s.headOff
		if avail > remaining {
			s.headOff += remaining
			remaining = 0
			break
		}
		remaining -= avail
		s.chunks = s.chunks[1:]
		s.headOff = 0
	}
	s.buffered -= n
	s.popped += uint64(n)
}

// Read drains up to len(p) bytes into p, for use where an io.Reader is
// convenient (e.g. bridging to an application socket). Read never blocks:
// it returns 0 if nothing is buffered.
func (s *ByteStream) Read(p []byte) int {
	data := s.Peek()
	if len(data) > len(p) {
		data = data[:len(p)]
	}
	copy(p, data)
	s.Pop(len(data))
	return len(data)
}
