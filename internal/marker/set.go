package marker

import (
	"context"
	"sync"
)

// Set is an append-only, observable marker collection. A rendering consumer
// drains a pass Stream into a Set and re-renders on each notification.
type Set struct {
	mu      sync.RWMutex
	markers []Marker
	notify  chan struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{notify: make(chan struct{})}
}

// Append adds markers to the end of the set and wakes every waiter.
func (s *Set) Append(ms ...Marker) {
	if len(ms) == 0 {
		return
	}
	s.mu.Lock()
	s.markers = append(s.markers, ms...)
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()
}

// Len returns the number of markers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

// Snapshot returns a copy of the markers appended so far, in append order.
func (s *Set) Snapshot() []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

// Since returns the markers at positions >= from, plus a channel that is
// closed on the next Append.
func (s *Set) Since(from int) ([]Marker, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	var out []Marker
	if from < len(s.markers) {
		out = make([]Marker, len(s.markers)-from)
		copy(out, s.markers[from:])
	}
	return out, s.notify
}

// Drain appends every marker received from ch until ch closes or ctx ends.
func (s *Set) Drain(ctx context.Context, ch <-chan Marker) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			s.Append(m)
		}
	}
}
