// Package reassembler reorders and deduplicates out-of-order byte substrings
// into a writer's ByteStream, under the writer's own capacity window.
package reassembler

import (
	"sort"

	"github.com/gopherlabs/mintcp/internal/stream"
)

// interval is a stored, not-yet-deliverable byte range, keyed by its
// absolute start offset.
type interval struct {
	start int64
	data  []byte
}

func (iv interval) end() int64 { return iv.start + int64(len(iv.data)) }

// Reassembler buffers byte substrings that arrive out of order and emits
// them to a ByteStream writer in order, once any preceding gap closes.
type Reassembler struct {
	stored       []interval // sorted, non-overlapping, by start
	nextExpected int64
	lastIndex    int64 // absolute index one past the final byte, once known
	haveLast     bool
}

// New returns an empty Reassembler.
func New() *Reassembler {
	return &Reassembler{}
}

// Insert delivers bytes starting at firstIndex to writer such that writer
// observes the original stream strictly in order. If isLast, firstIndex+len(data)
// is recorded as the stream's final offset; once writer's pushed count reaches
// it and all stored intervals have drained, writer is closed.
func (r *Reassembler) Insert(firstIndex int64, data []byte, isLast bool, writer *stream.ByteStream) {
	if isLast {
		r.haveLast = true
		r.lastIndex = firstIndex + int64(len(data))
	}

	windowEnd := r.nextExpected + int64(writer.AvailableCapacity())
	end := firstIndex + int64(len(data))

	if end <= r.nextExpected || firstIndex >= windowEnd {
		data = nil
	} else {
		if firstIndex < r.nextExpected {
			data = data[r.nextExpected-firstIndex:]
			firstIndex = r.nextExpected
		}
		if end := firstIndex + int64(len(data)); end > windowEnd {
			data = data[:windowEnd-firstIndex]
		}
	}

	if len(data) > 0 {
		if firstIndex == r.nextExpected {
			r.pushInOrder(data, writer)
		} else {
			r.store(interval{start: firstIndex, data: data})
		}
	}

	r.tryClose(writer)
}

// pushInOrder pushes a contiguous run starting exactly at nextExpected, then
// drains any stored intervals that have become reachable.
func (r *Reassembler) pushInOrder(data []byte, writer *stream.ByteStream) {
	for {
		n := writer.Push(data)
		r.nextExpected += int64(n)
		if n < len(data) {
			// writer ran out of capacity mid-push; the unwritten tail is
			// lost, matching push's own truncation contract.
			return
		}

		idx := -1
		for i, iv := range r.stored {
			if iv.start <= r.nextExpected && iv.end() > r.nextExpected {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		iv := r.stored[idx]
		r.stored = append(r.stored[:idx], r.stored[idx+1:]...)
		data = iv.data[r.nextExpected-iv.start:]
	}
}

// store inserts iv into the sorted stored set, coalescing with any
// overlapping or touching neighbors so at most one interval covers any
// given offset.
func (r *Reassembler) store(iv interval) {
	merged := []interval{}
	placed := false
	for _, existing := range r.stored {
		if iv.end() < existing.start || existing.end() < iv.start {
			if !placed && iv.start < existing.start {
				merged = append(merged, iv)
				placed = true
			}
			merged = append(merged, existing)
			continue
		}
		// overlapping or adjacent: coalesce into iv.
		iv = coalesce(iv, existing)
	}
	if !placed {
		merged = append(merged, iv)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].start < merged[j].start })
	r.stored = merged
}

// coalesce merges two overlapping or adjacent intervals into one spanning
// both, preferring a's bytes in the overlap (the two must agree there by
// contract).
func coalesce(a, b interval) interval {
	start := a.start
	if b.start < start {
		start = b.start
	}
	end := a.end()
	if b.end() > end {
		end = b.end()
	}
	out := make([]byte, end-start)
	copy(out[b.start-start:], b.data)
	copy(out[a.start-start:], a.data)
	return interval{start: start, data: out}
}

// tryClose closes writer once the final index is known, writer's pushed
// count has reached it, and no stored bytes remain.
func (r *Reassembler) tryClose(writer *stream.ByteStream) {
	if r.haveLast && r.nextExpected == r.lastIndex && len(r.stored) == 0 {
		writer.Close()
	}
}

// BytesPending returns the total number of buffered-but-undelivered bytes,
// each counted once after overlap elimination.
func (r *Reassembler) BytesPending() int {
	total := 0
	for _, iv := range r.stored {
		total += len(iv.data)
	}
	return total
}
