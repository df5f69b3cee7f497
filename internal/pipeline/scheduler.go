package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default ceiling on simultaneous lookups.
const DefaultConcurrency = 5

// scheduler drains jobs in submission order with at most limit running at
// once. errgroup's semaphore releases a slot only after the job function
// returns, so the next job starts strictly after a running one completes.
type scheduler struct {
	limit int
}

func (s scheduler) drain(ctx context.Context, jobs []*Job, run func(context.Context, *Job)) {
	limit := s.limit
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for _, job := range jobs {
		g.Go(func() error {
			run(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
}
