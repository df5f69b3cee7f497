// Package pipeline runs resolution passes: it classifies rate records, emits
// markers for explicit coordinates at once, and resolves named places through
// the cache and geocoder under a fixed concurrency ceiling.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/rate-map/internal/marker"
	"github.com/sells-group/rate-map/internal/model"
	"github.com/sells-group/rate-map/internal/resolve"
	"github.com/sells-group/rate-map/pkg/geocode"
)

// Cache is the lookup cache consulted before every network call.
type Cache interface {
	Get(ctx context.Context, key string) (model.Coordinate, bool)
	Put(ctx context.Context, key string, c model.Coordinate)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency sets the maximum number of simultaneous lookups.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.sched.limit = n
		}
	}
}

// Pipeline is safe for concurrent passes. Passes share the cache and the
// per-query flight group, so one query is never looked up twice at once.
type Pipeline struct {
	cache    Cache
	geocoder geocode.Client
	sched    scheduler
	flights  singleflight.Group
}

// New creates a Pipeline over an explicitly owned cache and geocoder.
func New(cache Cache, gc geocode.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		cache:    cache,
		geocoder: gc,
		sched:    scheduler{limit: DefaultConcurrency},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a resolution pass over records. Every immediate marker is already
// on the pass stream when Run returns; deferred jobs run in the background.
// Cancelling ctx stops queued jobs from starting.
func (p *Pipeline) Run(ctx context.Context, records []model.Record) *Pass {
	pass := &Pass{
		ID:      uuid.New().String(),
		done:    make(chan struct{}),
		started: time.Now(),
	}
	pass.log = zap.L().With(zap.String("pass_id", pass.ID))
	pass.stats.Records = len(records)

	var immediate []marker.Marker
	for _, rec := range records {
		c := resolve.Classify(rec)
		switch c.Kind {
		case resolve.KindImmediate:
			immediate = append(immediate, c.Marker)
		case resolve.KindDeferred:
			pass.jobs = append(pass.jobs, newJob(c))
		default:
			pass.stats.MissingLocation++
			pass.log.Debug("record dropped",
				zap.Int64("record_id", rec.ID),
				zap.Error(ErrMissingLocation),
			)
		}
	}
	pass.stats.Immediate = len(immediate)
	pass.stats.Deferred = len(pass.jobs)

	pass.stream = marker.NewStream(len(immediate) + len(pass.jobs))
	for _, m := range immediate {
		if pass.stream.Emit(m) {
			pass.emitted.Add(1)
		}
	}

	pass.log.Debug("pass started",
		zap.Int("records", len(records)),
		zap.Int("immediate", len(immediate)),
		zap.Int("deferred", len(pass.jobs)),
		zap.Int("missing_location", pass.stats.MissingLocation),
	)

	go func() {
		defer pass.finish()
		p.sched.drain(ctx, pass.jobs, func(ctx context.Context, job *Job) {
			p.runJob(ctx, pass, job)
		})
	}()

	return pass
}

func (p *Pipeline) runJob(ctx context.Context, pass *Pass, job *Job) {
	if err := ctx.Err(); err != nil {
		job.fail(eris.Wrap(ErrPassCancelled, err.Error()))
		job.advance(StateDropped)
		pass.dropped.Add(1)
		return
	}
	job.advance(StateRunning)

	coord, err := p.lookup(ctx, pass, job)
	if err != nil {
		job.fail(err)
		job.advance(StateFailed)
		job.advance(StateDropped)
		pass.failures.Add(1)
		pass.dropped.Add(1)
		pass.log.Debug("lookup failed",
			zap.String("query", job.Query),
			zap.Bool("transient", geocode.IsTransient(err)),
			zap.Error(err),
		)
		return
	}
	job.advance(StateResolved)

	if !pass.stream.Emit(job.class.MarkerAt(coord)) {
		job.advance(StateDropped)
		pass.dropped.Add(1)
		return
	}
	job.advance(StateEmitted)
	pass.emitted.Add(1)
}

// flightResult is what one shared lookup hands to every job waiting on it.
type flightResult struct {
	coord  model.Coordinate
	cached bool
	leader *Job // the job whose call ran the flight
}

// lookup resolves the job's query from the cache, or through exactly one
// geocode call shared by every job currently asking for the same query. Each
// caller records its own outcome in pass, so a pass that joined another pass's
// flight still counts it.
func (p *Pipeline) lookup(ctx context.Context, pass *Pass, job *Job) (model.Coordinate, error) {
	query := job.Query
	if c, ok := p.cache.Get(ctx, query); ok {
		pass.cacheHits.Add(1)
		return c, nil
	}

	v, err, _ := p.flights.Do(query, func() (any, error) {
		res := &flightResult{leader: job}

		// A flight that just finished may have filled the cache.
		if c, ok := p.cache.Get(ctx, query); ok {
			res.coord, res.cached = c, true
			return res, nil
		}

		// The call is shared with other passes; one pass's cancellation
		// must not fail the others.
		flightCtx := context.WithoutCancel(ctx)
		out, err := p.geocoder.Geocode(flightCtx, query)
		if err != nil {
			return res, &LookupError{Query: query, Cause: err}
		}
		if out == nil || !out.Matched {
			return res, &LookupError{Query: query, Cause: eris.New("no match")}
		}
		c := model.Coordinate{Latitude: out.Latitude, Longitude: out.Longitude}
		if !c.Valid() {
			return res, &LookupError{Query: query, Cause: eris.Errorf("invalid coordinate %v,%v", out.Latitude, out.Longitude)}
		}
		p.cache.Put(flightCtx, query, c)
		res.coord = c
		return res, nil
	})

	res, _ := v.(*flightResult)
	switch {
	case res == nil:
	case res.cached:
		pass.cacheHits.Add(1)
	case res.leader == job:
		pass.lookups.Add(1)
	default:
		pass.sharedLookups.Add(1)
	}
	if err != nil {
		return model.Coordinate{}, err
	}
	return res.coord, nil
}
