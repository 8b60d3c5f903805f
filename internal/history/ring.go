// Package history holds the bounded, time-ordered record of probe outcomes
// shared between the coordination loop and the display.
package history

import (
	"sync"

	"github.com/compilin/latgraph/internal/probe"
)

// Store is a fixed-capacity ring buffer of outcomes, oldest evicted first.
// Push and Snapshot hold a short mutex and never block on I/O, so the
// display reading snapshots cannot stall the network loop.
type Store struct {
	mu    sync.Mutex
	buf   []probe.Outcome
	start int
	count int
	total uint64
}

// NewStore creates a store retaining the given number of outcomes.
// Capacity is clamped to at least 1.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{buf: make([]probe.Outcome, capacity)}
}

// Push appends an outcome, evicting the oldest entry when at capacity.
func (s *Store) Push(o probe.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if s.count < len(s.buf) {
		s.buf[(s.start+s.count)%len(s.buf)] = o
		s.count++
		return
	}
	s.buf[s.start] = o
	s.start = (s.start + 1) % len(s.buf)
}

// Snapshot returns a point-in-time copy of the stored outcomes, oldest
// first. The caller owns the returned slice; later pushes do not affect it.
func (s *Store) Snapshot() []probe.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]probe.Outcome, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(s.start+i)%len(s.buf)]
	}
	return out
}

// Resize changes the retention capacity. Shrinking keeps the newest
// entries; growing preserves existing order.
func (s *Store) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keep := s.count
	if keep > capacity {
		keep = capacity
	}
	buf := make([]probe.Outcome, capacity)
	// Copy the newest `keep` entries, dropping from the oldest end.
	offset := s.count - keep
	for i := 0; i < keep; i++ {
		buf[i] = s.buf[(s.start+offset+i)%len(s.buf)]
	}
	s.buf = buf
	s.start = 0
	s.count = keep
}

// Len returns the number of stored outcomes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Cap returns the current retention capacity.
func (s *Store) Cap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Total returns the number of outcomes ever pushed, including evicted ones.
// Consumers that tail the history use it to tell fresh entries apart.
func (s *Store) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
