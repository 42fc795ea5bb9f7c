package search

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// pool bounds concurrent query execution to a fixed worker count with a
// fixed-depth admission queue, grounded on golang.org/x/sync/semaphore's
// weighted-semaphore idiom (the teacher's go.mod carries x/sync; candidates.go
// fans work out over raw channels, but has no bounded-pool precedent of its
// own, so this reaches directly for the package's documented use case: N
// bounded concurrent workers). admit uses TryAcquire so a saturated queue
// fails fast with Overloaded instead of blocking the caller indefinitely;
// once admitted, admit then blocks (bounded by ctx) until a worker slot
// frees up.
type pool struct {
	admission *semaphore.Weighted // capacity = workers + queueDepth
	workers   *semaphore.Weighted // capacity = workers
}

func newPool(workers, queueDepth int) *pool {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}
	return &pool{
		admission: semaphore.NewWeighted(int64(workers + queueDepth)),
		workers:   semaphore.NewWeighted(int64(workers)),
	}
}

// admit reserves a queue slot for the duration of fn, or returns an
// Overloaded error immediately if none is free.
func (p *pool) admit(ctx context.Context, fn func(ctx context.Context) (SearchResponse, error)) (SearchResponse, error) {
	if !p.admission.TryAcquire(1) {
		return SearchResponse{}, newError(Overloaded, nil)
	}
	defer p.admission.Release(1)

	if err := p.workers.Acquire(ctx, 1); err != nil {
		return SearchResponse{}, newError(Timeout, err)
	}
	defer p.workers.Release(1)

	return fn(ctx)
}
