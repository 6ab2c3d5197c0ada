package activity

import "sync"

// RingBuffer is a fixed-capacity circular buffer of Records.
// It allows late subscribers to catch up on recent activity.
type RingBuffer struct {
	mu       sync.RWMutex
	buf      []Record
	capacity int
	pos      int // next write position
	full     bool
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		buf:      make([]Record, capacity),
		capacity: capacity,
	}
}

// Write adds a record to the ring buffer.
func (rb *RingBuffer) Write(rec Record) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.pos] = rec
	rb.pos = (rb.pos + 1) % rb.capacity
	if rb.pos == 0 {
		rb.full = true
	}
}

// Len returns the number of records currently held.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.full {
		return rb.capacity
	}
	return rb.pos
}

// ReadAll returns all records in the buffer in chronological order.
func (rb *RingBuffer) ReadAll() []Record {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if !rb.full {
		result := make([]Record, rb.pos)
		copy(result, rb.buf[:rb.pos])
		return result
	}

	result := make([]Record, rb.capacity)
	copy(result, rb.buf[rb.pos:])
	copy(result[rb.capacity-rb.pos:], rb.buf[:rb.pos])
	return result
}

// Tail returns up to n of the most recent records matching keep, oldest first.
// A nil keep matches everything; n <= 0 means no limit.
func (rb *RingBuffer) Tail(n int, keep func(Record) bool) []Record {
	all := rb.ReadAll()

	var matched []Record
	for _, rec := range all {
		if keep == nil || keep(rec) {
			matched = append(matched, rec)
		}
	}
	if n > 0 && len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched
}
