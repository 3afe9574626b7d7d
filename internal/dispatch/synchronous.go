package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/config"
)

// Synchronous runs Submit in the caller's own goroutine and returns its
// error directly. Suitable for a CLI or a test where there is no separate
// worker to own the job's lifetime.
type Synchronous struct {
	Submitter Submitter
}

// NewSynchronous returns a Dispatcher that calls through to s immediately.
func NewSynchronous(s Submitter) *Synchronous {
	return &Synchronous{Submitter: s}
}

func (d *Synchronous) Dispatch(ctx context.Context, jobID uuid.UUID, cfg config.Submission) error {
	_, err := d.Submitter.Submit(ctx, jobID, cfg)
	return err
}
