package trace

import "sync"

const defaultCapacity = 100

// RingBuffer keeps the most recent published updates, oldest overwritten first.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewRingBuffer creates a buffer holding up to capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &RingBuffer{entries: make([]Entry, capacity)}
}

// Add stores e, evicting the oldest entry when the buffer is full.
func (rb *RingBuffer) Add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.next] = e
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
}

// Last returns up to n of the newest entries, oldest first.
func (rb *RingBuffer) Last(n int) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n = min(n, rb.countLocked())
	if n <= 0 {
		return nil
	}
	out := make([]Entry, n)
	for i := range n {
		out[n-1-i] = rb.entries[rb.indexFromNewest(i)]
	}
	return out
}

// LatestFor returns the newest entry published for serial.
func (rb *RingBuffer) LatestFor(serial string) (Entry, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	for i := range rb.countLocked() {
		if e := rb.entries[rb.indexFromNewest(i)]; e.Serial == serial {
			return e, true
		}
	}
	return Entry{}, false
}

// Count returns the number of entries currently stored.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.countLocked()
}

// Reset drops every entry.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	clear(rb.entries)
	rb.next = 0
	rb.full = false
}

func (rb *RingBuffer) countLocked() int {
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}

// indexFromNewest maps 0 to the newest slot, 1 to the one before, and so on.
func (rb *RingBuffer) indexFromNewest(i int) int {
	size := len(rb.entries)
	return (rb.next - 1 - i + 2*size) % size
}
