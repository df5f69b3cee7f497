package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/marker"
)

// Stats summarizes a pass. Counters for deferred work are final once the pass
// is done. Every deferred job that reaches a lookup counts exactly once in
// CacheHits, Lookups (its own geocode call) or SharedLookups (a call another
// job, possibly of another pass, was already making).
type Stats struct {
	Records         int `json:"records"`
	Immediate       int `json:"immediate"`
	Deferred        int `json:"deferred"`
	MissingLocation int `json:"missing_location"`
	CacheHits       int `json:"cache_hits"`
	Lookups         int `json:"lookups"`
	SharedLookups   int `json:"shared_lookups"`
	LookupFailures  int `json:"lookup_failures"`
	Emitted         int `json:"emitted"`
	Dropped         int `json:"dropped"`
}

// Pass is one run of the pipeline over one batch of records.
type Pass struct {
	ID string

	stream  *marker.Stream
	jobs    []*Job
	done    chan struct{}
	started time.Time
	log     *zap.Logger

	stats         Stats // fields fixed at construction
	cacheHits     atomic.Int64
	lookups       atomic.Int64
	sharedLookups atomic.Int64
	failures      atomic.Int64
	emitted       atomic.Int64
	dropped       atomic.Int64
}

// Markers returns the pass's marker stream. It is closed once every job is
// terminal or the consumer detaches.
func (p *Pass) Markers() <-chan marker.Marker {
	return p.stream.Markers()
}

// Detach tears down the consumer. Jobs keep running and still fill the cache,
// but their markers are discarded.
func (p *Pass) Detach() {
	p.stream.Detach()
}

// Done is closed when every job has reached a terminal state.
func (p *Pass) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the pass is done or ctx ends.
func (p *Pass) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the deferred jobs in submission order.
func (p *Pass) Jobs() []*Job {
	return p.jobs
}

// Stats returns a snapshot of the pass counters.
func (p *Pass) Stats() Stats {
	s := p.stats
	s.CacheHits = int(p.cacheHits.Load())
	s.Lookups = int(p.lookups.Load())
	s.SharedLookups = int(p.sharedLookups.Load())
	s.LookupFailures = int(p.failures.Load())
	s.Emitted = int(p.emitted.Load())
	s.Dropped = int(p.dropped.Load())
	return s
}

func (p *Pass) finish() {
	p.stream.Finish()
	close(p.done)

	s := p.Stats()
	p.log.Info("resolution pass complete",
		zap.Int("records", s.Records),
		zap.Int("immediate", s.Immediate),
		zap.Int("deferred", s.Deferred),
		zap.Int("cache_hits", s.CacheHits),
		zap.Int("lookups", s.Lookups),
		zap.Int("shared_lookups", s.SharedLookups),
		zap.Int("lookup_failures", s.LookupFailures),
		zap.Int("emitted", s.Emitted),
		zap.Int("dropped", s.Dropped),
		zap.Bool("detached", p.stream.Detached()),
		zap.Duration("elapsed", time.Since(p.started)),
	)
}
