// Package ringbuf provides a bounded, append-only history buffer.
//
// The buffer grows until it exceeds its capacity, then drops its oldest
// entries so only the most recent keep entries remain. Not safe for
// concurrent use; owners guard it with their own lock.
package ringbuf

// History is a FIFO-trimmed buffer of values, oldest first.
type History[T any] struct {
	buf      []T
	capacity int
	keep     int

	// trimmed counts entries dropped by trimming (for metrics)
	trimmed uint64
}

// New creates a History that trims down to keep entries once more than
// capacity entries are held. keep is clamped to [1, capacity].
func New[T any](capacity, keep int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	if keep < 1 || keep > capacity {
		keep = capacity
	}
	return &History[T]{
		buf:      make([]T, 0, capacity+1),
		capacity: capacity,
		keep:     keep,
	}
}

// Push appends v, trimming the oldest entries when capacity is exceeded.
func (h *History[T]) Push(v T) {
	h.buf = append(h.buf, v)
	if len(h.buf) <= h.capacity {
		return
	}

	drop := len(h.buf) - h.keep
	// Copy into the existing backing array so dropped values are released
	n := copy(h.buf, h.buf[drop:])
	var zero T
	for i := n; i < len(h.buf); i++ {
		h.buf[i] = zero
	}
	h.buf = h.buf[:n]
	h.trimmed += uint64(drop)
}

// Recent returns up to limit entries, newest first. limit <= 0 returns nil.
func (h *History[T]) Recent(limit int) []T {
	if limit <= 0 || len(h.buf) == 0 {
		return nil
	}
	if limit > len(h.buf) {
		limit = len(h.buf)
	}
	out := make([]T, 0, limit)
	for i := len(h.buf) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.buf[i])
	}
	return out
}

// Len returns the current number of entries.
func (h *History[T]) Len() int {
	return len(h.buf)
}

// Cap returns the trim threshold.
func (h *History[T]) Cap() int {
	return h.capacity
}

// Trimmed returns the total number of entries dropped by trimming.
func (h *History[T]) Trimmed() uint64 {
	return h.trimmed
}
