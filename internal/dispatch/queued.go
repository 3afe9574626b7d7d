package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/config"
)

// queueSize bounds how many submissions can wait for the single worker.
// Beyond this, Dispatch rejects immediately rather than blocking the caller.
const queueSize = 64

type queuedJob struct {
	jobID uuid.UUID
	cfg   config.Submission
}

// Queued runs every submission through one worker goroutine, so at most one
// job executes at a time — mirroring the agent-side constraint that
// concurrent executions would otherwise compete for the same host's I/O.
type Queued struct {
	submitter Submitter
	logger    *zap.Logger
	queue     chan queuedJob
}

// NewQueued constructs a Queued dispatcher. Call Run to start its worker.
func NewQueued(s Submitter, logger *zap.Logger) *Queued {
	return &Queued{
		submitter: s,
		logger:    logger.Named("dispatch"),
		queue:     make(chan queuedJob, queueSize),
	}
}

// Run starts the worker loop. It blocks until ctx is cancelled, processing
// one job at a time from the queue.
func (q *Queued) Run(ctx context.Context) {
	q.logger.Info("dispatch worker started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("dispatch worker stopped")
			return
		case j := <-q.queue:
			q.run(ctx, j)
		}
	}
}

func (q *Queued) run(ctx context.Context, j queuedJob) {
	if _, err := q.submitter.Submit(ctx, j.jobID, j.cfg); err != nil {
		q.logger.Error("job submission failed",
			zap.String("job_id", j.jobID.String()),
			zap.Error(err),
		)
	}
}

// Dispatch enqueues jobID and returns immediately. It returns an error
// without blocking if the queue is full; the caller decides whether to
// retry.
func (q *Queued) Dispatch(ctx context.Context, jobID uuid.UUID, cfg config.Submission) error {
	select {
	case q.queue <- queuedJob{jobID: jobID, cfg: cfg}:
		q.logger.Info("job enqueued", zap.String("job_id", jobID.String()))
		return nil
	default:
		return fmt.Errorf("dispatch: queue full, rejecting job %s", jobID)
	}
}
