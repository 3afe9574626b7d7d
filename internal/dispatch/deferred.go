package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/config"
)

// Deferred schedules a submission to run at a future instant via gocron,
// tagging each job with its own UUID and singleton mode so a job already
// running when its own tick somehow fires again is never double-submitted.
type Deferred struct {
	cron   gocron.Scheduler
	inner  Dispatcher
	logger *zap.Logger
}

// NewDeferred constructs a Deferred dispatcher wrapping inner, which
// actually performs the submission once a scheduled tick fires. Call Start
// before scheduling anything and Stop during shutdown.
func NewDeferred(inner Dispatcher, logger *zap.Logger) (*Deferred, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("dispatch: creating gocron scheduler: %w", err)
	}
	return &Deferred{cron: s, inner: inner, logger: logger.Named("dispatch.deferred")}, nil
}

// Start begins the underlying gocron scheduler.
func (d *Deferred) Start() { d.cron.Start() }

// Stop gracefully shuts down the scheduler, waiting for any already-firing
// job function to return.
func (d *Deferred) Stop() error { return d.cron.Shutdown() }

// At schedules jobID for submission at runAt. Returns an error if gocron
// rejects the job definition; the submission itself runs asynchronously: an
// error returned by inner.Dispatch is logged here, and anything inner does
// not return (e.g. a Queued dispatcher's later Submit failure) is only
// observable through inner's own error handling.
func (d *Deferred) At(jobID uuid.UUID, cfg config.Submission, runAt time.Time) error {
	_, err := d.cron.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(runAt)),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 24*time.Hour)
			defer cancel()
			if err := d.inner.Dispatch(ctx, jobID, cfg); err != nil {
				d.logger.Error("deferred dispatch failed",
					zap.String("job_id", jobID.String()),
					zap.Error(err),
				)
			}
		}),
		gocron.WithTags(jobID.String()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("dispatch: scheduling job %s: %w", jobID, err)
	}
	return nil
}

// Cancel removes any pending scheduled run for jobID. A no-op if none exists.
func (d *Deferred) Cancel(jobID uuid.UUID) {
	d.cron.RemoveByTags(jobID.String())
}

// Dispatch satisfies Dispatcher by scheduling an immediate (now) run,
// letting Deferred substitute for any other Dispatcher when a caller wants
// every submission funneled through one gocron instance.
func (d *Deferred) Dispatch(ctx context.Context, jobID uuid.UUID, cfg config.Submission) error {
	return d.At(jobID, cfg, time.Now())
}
