package marker

import "sync"

// Stream delivers the markers of one pass to a single consumer. Its buffer is
// sized for every marker the pass can produce, so Emit never blocks.
//
// The stream closes on Finish (producer done) or Detach (consumer gone),
// whichever comes first. Emit after either is a no-op.
type Stream struct {
	mu       sync.Mutex
	ch       chan Marker
	closed   bool
	detached bool
}

// NewStream returns a stream able to buffer capacity markers.
func NewStream(capacity int) *Stream {
	return &Stream{ch: make(chan Marker, max(capacity, 0))}
}

// Emit appends m to the stream. It reports false when the consumer has
// detached or the stream is finished.
func (s *Stream) Emit(m Marker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- m:
		return true
	default:
		// Capacity exceeded; never block the producer.
		return false
	}
}

// Markers returns the receive side of the stream.
func (s *Stream) Markers() <-chan Marker {
	return s.ch
}

// Detach tears the consumer down; later emissions are dropped.
func (s *Stream) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
	s.closeLocked()
}

// Detached reports whether the consumer has detached.
func (s *Stream) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// Finish closes the stream after the last emission.
func (s *Stream) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
