package buffer

import "sync"

// DefaultCapacity bounds a reading buffer at the most recent 100 entries.
const DefaultCapacity = 100

// Buffer is a thread-safe, bounded, newest-first list of readings.
//
// Entries are insertion-ordered: an initial load replaces the contents
// wholesale in timestamp-descending order, and each live insertion is placed
// at the front regardless of its timestamp. Callers needing strict time order
// must sort the snapshot themselves.
type Buffer[T any] struct {
	mu       sync.RWMutex
	data     []T
	capacity int
}

// New creates a buffer bounded at the given capacity. Non-positive capacities
// fall back to DefaultCapacity.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{capacity: capacity}
}

// Prepend places a new entry at the front and drops entries from the tail so
// the buffer never exceeds its capacity.
func (b *Buffer[T]) Prepend(entry T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keep := len(b.data)
	if keep > b.capacity-1 {
		keep = b.capacity - 1
	}
	next := make([]T, 0, keep+1)
	next = append(next, entry)
	next = append(next, b.data[:keep]...)
	b.data = next
}

// Replace swaps the contents wholesale, truncating to capacity. The input
// slice is copied so later caller mutations don't leak in.
func (b *Buffer[T]) Replace(entries []T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(entries) > b.capacity {
		entries = entries[:b.capacity]
	}
	b.data = make([]T, len(entries))
	copy(b.data, entries)
}

// Snapshot returns a copy of the current contents, newest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, len(b.data))
	copy(out, b.data)
	return out
}

// Head returns the newest entry.
func (b *Buffer[T]) Head() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var zero T
	if len(b.data) == 0 {
		return zero, false
	}
	return b.data[0], true
}

// Len returns the current number of entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
