// Package txworker linearizes every mutating (and read-visible) call
// against the disk-quota store through one goroutine, so the quota
// facade never has to reason about lost updates on the shared global
// quota row. This sits alongside the BEGIN IMMEDIATE + retry-on-busy
// discipline in internal/pagestore as its own explicit component, since
// the cross-row sum invariant needs linearized mutation regardless of
// what SQLite itself allows concurrently.
package txworker

import (
	"context"
	"fmt"
	"sync"

	"github.com/tilequota/diskquota/internal/types"
)

// unitOfWork is one submitted closure plus where its result goes.
type unitOfWork struct {
	ctx    context.Context
	fn     func(ctx context.Context) (any, error)
	result chan result
}

type result struct {
	value any
	err   error
}

// Worker runs submitted units of work one at a time, in submission
// order, on a single goroutine.
type Worker struct {
	queue  chan unitOfWork
	done   chan struct{}
	closed chan struct{}

	mu       sync.Mutex
	closing  bool
	inFlight sync.WaitGroup
}

// New starts the worker goroutine. queueSize bounds how many pending
// submissions can be buffered before Submit blocks; a bounded queue
// gives visible backpressure instead of unbounded goroutine buildup on
// a slow store.
func New(queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 1024
	}
	w := &Worker{
		queue:  make(chan unitOfWork, queueSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	for u := range w.queue {
		w.runOne(u)
	}
}

// runOne executes a single unit of work with panic recovery: a panicking
// unit must not take down the goroutine every other caller depends on,
// so the recovered panic is converted to an error rather than re-raised.
func (w *Worker) runOne(u unitOfWork) {
	defer func() {
		if r := recover(); r != nil {
			u.result <- result{err: types.WrapStorageError("unit of work", fmt.Errorf("panic: %v", r))}
		}
	}()
	v, err := u.fn(u.ctx)
	u.result <- result{value: v, err: err}
}

// Submit enqueues fn and returns immediately without waiting for it to
// run. Used for fire-and-forget style calls where the caller doesn't
// need the result (callers that do need it use SubmitAndWait).
func (w *Worker) Submit(ctx context.Context, fn func(ctx context.Context) (any, error)) error {
	_, err := w.submit(ctx, fn, true)
	return err
}

// SubmitAndWait enqueues fn and blocks until it has run, returning its
// result. If ctx is canceled before fn runs, SubmitAndWait returns
// types.ErrInterrupted immediately, but fn still runs to completion on
// the worker goroutine — a unit of work, once queued, is never abandoned
// mid-flight.
func (w *Worker) SubmitAndWait(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return w.submit(ctx, fn, false)
}

func (w *Worker) submit(ctx context.Context, fn func(ctx context.Context) (any, error), async bool) (any, error) {
	wait, err := w.SubmitAsync(ctx, fn)
	if err != nil {
		return nil, err
	}
	if async {
		return nil, nil
	}
	return wait(ctx)
}

// SubmitAsync enqueues fn and returns as soon as it is in the queue, in
// submission order, before this call returns. The returned function
// blocks the caller (not the worker) until fn has run; callers that
// never call it just leak nothing, since fn still runs to completion
// either way.
func (w *Worker) SubmitAsync(ctx context.Context, fn func(ctx context.Context) (any, error)) (func(ctx context.Context) (any, error), error) {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		return nil, types.ErrStoreClosed
	}
	w.inFlight.Add(1)
	w.mu.Unlock()
	defer w.inFlight.Done()

	u := unitOfWork{ctx: ctx, fn: fn, result: make(chan result, 1)}

	// Close waits for inFlight to drain before it closes w.queue, so every
	// submitter that reaches here is guaranteed the queue is still open.
	select {
	case w.queue <- u:
	case <-w.closed:
		return nil, types.ErrStoreClosed
	}

	wait := func(waitCtx context.Context) (any, error) {
		select {
		case r := <-u.result:
			return r.value, r.err
		case <-waitCtx.Done():
			return nil, types.ErrInterrupted
		case <-w.closed:
			return nil, types.ErrStoreClosed
		}
	}
	return wait, nil
}

// Close stops accepting new submissions and waits until ctx is done for
// queued units to finish before returning (callers pass a
// context.WithTimeout for the bounded drain deadline). Units still
// running past the deadline keep running; Close does not cancel them, it
// just stops waiting for them.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closing = true
	close(w.closed)
	w.mu.Unlock()

	// Every submitter that got past the closing check above already holds
	// an inFlight count and is guaranteed to reach its send (or bail via
	// w.closed) before this returns, so w.queue is safe to close once
	// inFlight drains to zero. No submitter can see closing == false and
	// race past this wait.
	w.inFlight.Wait()
	close(w.queue)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return types.ErrInterrupted
	}
}
