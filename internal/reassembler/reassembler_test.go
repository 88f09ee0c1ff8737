package reassembler

import (
	"testing"

	"github.com/gopherlabs/mintcp/internal/stream"
)

func TestOutOfOrderReassembly(t *testing.T) {
	s := stream.New(100)
	r := New()

	r.Insert(3, []byte("lo"), false, s)
	if got := string(s.Peek()); got != "" {
		t.Fatalf("after first insert: stream = %q, want empty", got)
	}
	if got := r.BytesPending(); got != 2 {
		t.Fatalf("bytes pending = %d, want 2", got)
	}

	r.Insert(0, []byte("hel"), false, s)
	if got := string(s.Peek()); got != "hello" {
		t.Fatalf("after second insert: stream = %q, want hello", got)
	}
	if got := r.BytesPending(); got != 0 {
		t.Fatalf("bytes pending = %d, want 0", got)
	}

	r.Insert(5, []byte(""), true, s)
	if got := string(s.Peek()); got != "hello" {
		t.Fatalf("after third insert: stream = %q, want hello", got)
	}
	if !s.IsClosed() {
		t.Fatal("stream should be closed after last byte confirmed")
	}
	if got := r.BytesPending(); got != 0 {
		t.Fatalf("bytes pending = %d, want 0", got)
	}
}

func TestIdempotentOverlappingInsert(t *testing.T) {
	s := stream.New(100)
	r := New()
	r.Insert(0, []byte("abc"), false, s)
	r.Insert(0, []byte("abc"), false, s)
	if got := string(s.Peek()); got != "abc" {
		t.Fatalf("stream = %q, want abc", got)
	}
}

func TestOverlappingOutOfOrderCoalesces(t *testing.T) {
	s := stream.New(100)
	r := New()
	r.Insert(2, []byte("cdef"), false, s)
	r.Insert(4, []byte("efgh"), false, s)
	if got := r.BytesPending(); got != 6 {
		t.Fatalf("bytes pending after overlapping stores = %d, want 6", got)
	}
	r.Insert(0, []byte("ab"), false, s)
	if got := string(s.Peek()); got != "abcdefgh" {
		t.Fatalf("stream = %q, want abcdefgh", got)
	}
}

func TestCapacityWindowTruncatesTrailingEdge(t *testing.T) {
	s := stream.New(4)
	r := New()
	r.Insert(0, []byte("abcdefgh"), false, s)
	if got := string(s.Peek()); got != "abcd" {
		t.Fatalf("stream = %q, want abcd (truncated to capacity)", got)
	}
	if got := r.BytesPending(); got != 0 {
		t.Fatalf("bytes pending = %d, want 0 (overflow dropped, not stored)", got)
	}
}

func TestLateSegmentIsNoOp(t *testing.T) {
	s := stream.New(100)
	r := New()
	r.Insert(0, []byte("ab"), false, s)
	before := r.BytesPending()
	r.Insert(0, []byte("a"), false, s) // entirely before next_expected now
	if got := r.BytesPending(); got != before {
		t.Fatalf("bytes pending changed after late segment: %d vs %d", got, before)
	}
	if got := string(s.Peek()); got != "ab" {
		t.Fatalf("stream = %q, want ab unchanged", got)
	}
}

func TestUnreachableBeyondWindowDropped(t *testing.T) {
	s := stream.New(4)
	r := New()
	r.Insert(10, []byte("xyz"), false, s)
	if got := r.BytesPending(); got != 0 {
		t.Fatalf("bytes pending = %d, want 0 for out-of-window insert", got)
	}
}

func TestEmptyLastSegmentClosesImmediatelyWhenAlreadyDrained(t *testing.T) {
	s := stream.New(100)
	r := New()
	r.Insert(0, []byte("hi"), false, s)
	r.Insert(2, nil, true, s)
	if !s.IsClosed() {
		t.Fatal("stream should close once final index reached with nothing pending")
	}
}
