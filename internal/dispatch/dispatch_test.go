package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/config"
	"github.com/runforge/runforge/internal/resultcapture"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeSubmitter) Submit(ctx context.Context, jobID uuid.UUID, cfg config.Submission) (resultcapture.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, jobID)
	return nil, f.err
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSynchronousDispatchCallsSubmitImmediately(t *testing.T) {
	sub := &fakeSubmitter{}
	d := NewSynchronous(sub)

	jobID := uuid.New()
	if err := d.Dispatch(context.Background(), jobID, config.Default()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sub.callCount() != 1 {
		t.Fatalf("expected 1 Submit call, got %d", sub.callCount())
	}
}

func TestSynchronousDispatchPropagatesSubmitError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("boom")}
	d := NewSynchronous(sub)

	if err := d.Dispatch(context.Background(), uuid.New(), config.Default()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestQueuedDispatchRunsOnWorkerGoroutine(t *testing.T) {
	sub := &fakeSubmitter{}
	q := NewQueued(sub, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	jobID := uuid.New()
	if err := q.Dispatch(ctx, jobID, config.Default()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sub.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sub.callCount() != 1 {
		t.Fatalf("expected worker to call Submit once, got %d", sub.callCount())
	}
}

func TestQueuedDispatchRejectsWhenFull(t *testing.T) {
	sub := &fakeSubmitter{}
	q := NewQueued(sub, zap.NewNop())
	// No Run started: the queue never drains, so it fills up deterministically.

	var lastErr error
	for i := 0; i < queueSize+1; i++ {
		lastErr = q.Dispatch(context.Background(), uuid.New(), config.Default())
	}
	if lastErr == nil {
		t.Fatal("expected the dispatcher to reject once its queue is full")
	}
}

func TestDeferredAtRunsTaskAtScheduledTime(t *testing.T) {
	sub := &fakeSubmitter{}
	inner := NewSynchronous(sub)
	d, err := NewDeferred(inner, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDeferred: %v", err)
	}
	d.Start()
	defer d.Stop()

	jobID := uuid.New()
	if err := d.At(jobID, config.Default(), time.Now().Add(20*time.Millisecond)); err != nil {
		t.Fatalf("At: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sub.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sub.callCount() != 1 {
		t.Fatalf("expected scheduled task to call Submit once, got %d", sub.callCount())
	}
}
