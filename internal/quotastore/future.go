package quotastore

import (
	"context"

	"github.com/tilequota/diskquota/internal/types"
)

// Future is the handle returned by the facade's asynchronous operations
// (DeleteLayer, AddHitsAndSetAccessTime), built on the Transaction
// Worker's SubmitAsync: the unit of work is already enqueued, in
// submission order, by the time Future is returned; Wait blocks only the
// caller, never the worker.
type Future struct {
	resultCh chan futureResult
}

type futureResult struct {
	value any
	err   error
}

func newFuture() *Future {
	return &Future{resultCh: make(chan futureResult, 1)}
}

// Wait blocks until the unit of work completes or ctx is canceled. A
// canceled Wait does not stop the unit itself: once queued, a unit
// always runs to completion.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case r := <-f.resultCh:
		return r.value, r.err
	case <-ctx.Done():
		return nil, types.ErrInterrupted
	}
}

func (s *Store) submitFuture(ctx context.Context, fn func(ctx context.Context) (any, error)) *Future {
	f := newFuture()
	wait, err := s.worker.SubmitAsync(ctx, fn)
	if err != nil {
		f.resultCh <- futureResult{err: err}
		return f
	}
	go func() {
		v, err := wait(ctx)
		f.resultCh <- futureResult{value: v, err: err}
	}()
	return f
}
