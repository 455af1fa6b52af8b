package txworker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tilequota/diskquota/internal/types"
)

func TestSubmitAndWaitReturnsResult(t *testing.T) {
	w := New(0)
	defer closeWorker(t, w)

	v, err := w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("SubmitAndWait failed: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %v", v)
	}
}

func TestSubmitAndWaitPropagatesError(t *testing.T) {
	w := New(0)
	defer closeWorker(t, w)

	wantErr := types.ErrInvariant
	_, err := w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
}

func TestUnitsRunInSubmissionOrder(t *testing.T) {
	w := New(0)
	defer closeWorker(t, w)

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			// Across goroutines only enqueue time orders units, so this
			// phase checks that every staggered submission runs.
			time.Sleep(time.Duration(i) * time.Millisecond)
			_, _ = w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if len(order) != 20 {
		t.Fatalf("expected 20 units to run, got %d", len(order))
	}

	// Units from a single submitter run in the order they were submitted.
	var seq []int
	for i := 0; i < 20; i++ {
		i := i
		if err := w.Submit(context.Background(), func(ctx context.Context) (any, error) {
			seq = append(seq, i)
			return nil, nil
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	if _, err := w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("SubmitAndWait failed: %v", err)
	}
	if len(seq) != 20 {
		t.Fatalf("expected 20 sequential units to run, got %d", len(seq))
	}
	for i, v := range seq {
		if v != i {
			t.Fatalf("expected submission order, got %v", seq)
		}
	}
}

func TestPanicInUnitIsConvertedNotFatal(t *testing.T) {
	w := New(0)
	defer closeWorker(t, w)

	_, err := w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking unit of work")
	}

	// The worker goroutine must still be alive afterward.
	v, err := w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
		return "still alive", nil
	})
	if err != nil {
		t.Fatalf("worker did not survive the panic: %v", err)
	}
	if v != "still alive" {
		t.Errorf("expected %q, got %v", "still alive", v)
	}
}

func TestSubmitAndWaitInterruptedByCallerContext(t *testing.T) {
	w := New(0)
	defer closeWorker(t, w)

	release := make(chan struct{})
	started := make(chan struct{})

	// Occupy the worker with a long-running unit first.
	go func() {
		_, _ = w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan error, 1)
	ranToCompletion := make(chan struct{})
	go func() {
		_, err := w.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
			close(ranToCompletion)
			return nil, nil
		})
		resultCh <- err
	}()

	cancel()
	if err := <-resultCh; err != types.ErrInterrupted {
		t.Errorf("expected ErrInterrupted, got %v", err)
	}

	close(release)
	select {
	case <-ranToCompletion:
	case <-time.After(time.Second):
		t.Error("unit of work should still run to completion after its waiter was interrupted")
	}
}

func TestScenarioFConcurrentWriters(t *testing.T) {
	w := New(0)
	defer closeWorker(t, w)

	const goroutines = 2
	const perGoroutine = 1000

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, err := w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
					counter++
					return nil, nil
				})
				if err != nil {
					t.Errorf("SubmitAndWait failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*perGoroutine {
		t.Errorf("expected counter == %d, got %d (indicates a lost update)", goroutines*perGoroutine, counter)
	}
}

func TestCloseDrainsPendingWork(t *testing.T) {
	w := New(0)

	done := make(chan struct{})
	_ = w.Submit(context.Background(), func(ctx context.Context) (any, error) {
		close(done)
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case <-done:
	default:
		t.Error("expected queued unit to have run before Close returned")
	}
}

func TestSubmitAfterCloseReturnsStoreClosed(t *testing.T) {
	w := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != types.ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func TestConcurrentSubmitDuringCloseNeverPanics(t *testing.T) {
	for i := 0; i < 50; i++ {
		w := New(0)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = w.SubmitAndWait(context.Background(), func(ctx context.Context) (any, error) {
					return nil, nil
				})
			}()
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = w.Close(ctx)
		cancel()
		wg.Wait()
	}
}

func closeWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
