package pipeline

import (
	"sync"

	"github.com/sells-group/rate-map/internal/resolve"
)

// State is a deferred job's lifecycle position.
type State int

const (
	StateQueued   State = iota // constructed, waiting for a slot
	StateRunning               // holds a scheduler slot
	StateResolved              // coordinate obtained
	StateFailed                // lookup failed
	StateEmitted               // terminal: marker delivered
	StateDropped               // terminal: no marker
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	case StateEmitted:
		return "emitted"
	case StateDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateEmitted || s == StateDropped
}

// transitions lists the legal successors of each state. Queued may go straight
// to Dropped when the pass is cancelled before a slot is granted.
var transitions = map[State][]State{
	StateQueued:   {StateRunning, StateDropped},
	StateRunning:  {StateResolved, StateFailed},
	StateResolved: {StateEmitted, StateDropped},
	StateFailed:   {StateDropped},
}

// Job is a pending named-place lookup plus the classification needed to turn
// the resolved coordinate into a marker.
type Job struct {
	Query string

	class resolve.Classification

	mu    sync.Mutex
	state State
	err   error
}

func newJob(c resolve.Classification) *Job {
	return &Job{Query: c.Query, class: c, state: StateQueued}
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure recorded on the job, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// advance moves the job to next and reports whether the move was legal.
func (j *Job) advance(next State) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, allowed := range transitions[j.state] {
		if allowed == next {
			j.state = next
			return true
		}
	}
	return false
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}
