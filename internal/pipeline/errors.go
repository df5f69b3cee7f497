package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Failure classes. None of them abort a pass.
var (
	// ErrMissingLocation marks a record with no coordinate and no state.
	ErrMissingLocation = eris.New("pipeline: record has no usable location")
	// ErrLookupFailed marks a deferred job whose geocode lookup errored or
	// matched nothing. Failures are not cached.
	ErrLookupFailed = eris.New("pipeline: geocode lookup failed")
	// ErrPassCancelled marks a job that never ran because its pass context ended.
	ErrPassCancelled = eris.New("pipeline: pass cancelled before job started")
)

// LookupError is the failure recorded on a job. errors.Is matches both
// ErrLookupFailed and the underlying cause.
type LookupError struct {
	Query string
	Cause error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("pipeline: lookup %q: %v", e.Query, e.Cause)
}

func (e *LookupError) Unwrap() []error {
	return []error{ErrLookupFailed, e.Cause}
}
