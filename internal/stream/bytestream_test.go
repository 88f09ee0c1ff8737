package stream

import (
	"bytes"
	"errors"
	"testing"
)

func TestPushPopBasic(t *testing.T) {
	s := New(10)
	n := s.Push([]byte("hello"))
	if n != 5 {
		t.Fatalf("Push returned %d, want 5", n)
	}
	if got := s.BytesBuffered(); got != 5 {
		t.Fatalf("BytesBuffered = %d, want 5", got)
	}
	if got := s.AvailableCapacity(); got != 5 {
		t.Fatalf("AvailableCapacity = %d, want 5", got)
	}
	if got := string(s.Peek()); got != "hello" {
		t.Fatalf("Peek = %q, want %q", got, "hello")
	}
	s.Pop(3)
	if got := string(s.Peek()); got != "lo" {
		t.Fatalf("Peek after pop = %q, want %q", got, "lo")
	}
	if got := s.BytesPopped(); got != 3 {
		t.Fatalf("BytesPopped = %d, want 3", got)
	}
}

func TestPushBeyondCapacityTruncates(t *testing.T) {
	s := New(3)
	n := s.Push([]byte("hello"))
	if n != 3 {
		t.Fatalf("Push returned %d, want 3", n)
	}
	if got := string(s.Peek()); got != "hel" {
		t.Fatalf("Peek = %q, want %q", got, "hel")
	}
	if s.AvailableCapacity() != 0 {
		t.Fatalf("AvailableCapacity = %d, want 0", s.AvailableCapacity())
	}
}

func TestCloseAndFinished(t *testing.T) {
	s := New(10)
	s.Push([]byte("ab"))
	if s.IsFinished() {
		t.Fatal("IsFinished true before close")
	}
	s.Close()
	if s.IsFinished() {
		t.Fatal("IsFinished true while bytes still buffered")
	}
	s.Pop(2)
	if !s.IsFinished() {
		t.Fatal("IsFinished false after close and full drain")
	}
	if s.Push([]byte("x")) != 0 {
		t.Fatal("Push after close should be a no-op")
	}
}

func TestSetError(t *testing.T) {
	s := New(10)
	sentinel := errors.New("boom")
	s.SetError(sentinel)
	if !s.HasError() {
		t.Fatal("HasError false after SetError")
	}
	if !errors.Is(s.Err(), sentinel) {
		t.Fatalf("Err() = %v, want %v", s.Err(), sentinel)
	}
	// idempotent: a second SetError must not replace the first error.
	s.SetError(errors.New("other"))
	if !errors.Is(s.Err(), sentinel) {
		t.Fatal("SetError must be idempotent")
	}
}

func TestInvariantPushedEqualsPoppedPlusBuffered(t *testing.T) {
	s := New(16)
	total := 0
	for _, chunk := range [][]byte{[]byte("abcd"), []byte("efgh"), []byte("ij")} {
		total += s.Push(chunk)
		s.Pop(1)
	}
	if s.BytesPopped()+uint64(s.BytesBuffered()) != s.BytesPushed() {
		t.Fatalf("invariant broken: popped=%d buffered=%d pushed=%d",
			s.BytesPopped(), s.BytesBuffered(), s.BytesPushed())
	}
	_ = total
}

func TestMultiChunkRead(t *testing.T) {
	s := New(5 * 4096)
	var want bytes.Buffer
	for i := 0; i < 5; i++ {
		chunk := bytes.Repeat([]byte{byte('a' + i)}, 4096)
		want.Write(chunk)
		s.Push(chunk)
	}
	var got bytes.Buffer
	buf := make([]byte, 1024)
	for s.BytesBuffered() > 0 {
		n := s.Read(buf)
		if n == 0 {
			t.Fatal("Read returned 0 while bytes remain buffered")
		}
		got.Write(buf[:n])
	}
	if !bytes.Equal(got.Bytes(), want.Bytes()) {
		t.Fatal("multi-chunk read did not reproduce pushed bytes in order")
	}
}
