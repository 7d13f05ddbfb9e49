package frame

import (
	"sync"
	"sync/atomic"
)

// Buffer holds at most one frame: the latest one published.
//
// Semantics:
//   - Publish overwrites whatever is held (latest wins, no queue)
//   - Snapshot returns an owned copy, so callers never alias producer memory
//   - Clear drops the held frame; the buffer reads as empty afterwards
//
// A single mutex guards the frame pointer. The only work done under it is a
// pointer swap (Publish) or one frame copy (Snapshot). No I/O happens under
// the lock.
type Buffer struct {
	mu       sync.Mutex
	latest   *Frame
	consumed bool
	seq      uint64

	published   atomic.Uint64
	overwritten atomic.Uint64
	snapshots   atomic.Uint64
}

// BufferStats is a point-in-time view of buffer counters.
type BufferStats struct {
	Published   uint64 `json:"published"`
	Overwritten uint64 `json:"overwritten"`
	Snapshots   uint64 `json:"snapshots"`
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Publish replaces the held frame with f. The buffer takes ownership of f;
// the caller must not modify it afterwards. Publishing nil is a no-op.
func (b *Buffer) Publish(f *Frame) {
	if f == nil {
		return
	}

	b.mu.Lock()
	b.seq++
	f.Seq = b.seq
	if b.latest != nil && !b.consumed {
		b.overwritten.Add(1)
	}
	b.latest = f
	b.consumed = false
	b.mu.Unlock()

	b.published.Add(1)
}

// Snapshot returns an independent copy of the held frame, or false when the
// buffer is empty.
func (b *Buffer) Snapshot() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.latest == nil {
		return nil, false
	}
	b.consumed = true
	b.snapshots.Add(1)
	return b.latest.Clone(), true
}

// Clear drops the held frame.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.latest = nil
	b.consumed = false
	b.mu.Unlock()
}

// Stats returns the buffer counters. It does not take the frame lock.
func (b *Buffer) Stats() BufferStats {
	return BufferStats{
		Published:   b.published.Load(),
		Overwritten: b.overwritten.Load(),
		Snapshots:   b.snapshots.Load(),
	}
}
