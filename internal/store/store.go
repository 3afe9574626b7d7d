// Package store defines the persistence boundary for the core entities and
// provides a gorm-backed implementation. Interfaces are kept separate from
// the gorm.io models in internal/model so a caller can swap in any
// implementation that satisfies the same contract.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/model"
)

// ListOptions bounds and offsets a listing query. The gorm-backed stores
// apply Limit and Offset only when Limit is positive; a zero Limit returns
// every row and ignores Offset.
type ListOptions struct {
	Limit  int
	Offset int
}

// InterpreterStore persists Interpreter records.
type InterpreterStore interface {
	Create(ctx context.Context, i *model.Interpreter) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Interpreter, error)
	List(ctx context.Context, opts ListOptions) ([]*model.Interpreter, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ServerStore persists Server records and their Interpreter membership.
type ServerStore interface {
	Create(ctx context.Context, s *model.Server) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Server, error)
	List(ctx context.Context, opts ListOptions) ([]*model.Server, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// AddInterpreter grants a Server permission to run the given Interpreter.
	// Idempotent: adding an already-granted Interpreter is not an error.
	AddInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) error

	// RemoveInterpreter revokes a Server's permission to run the given
	// Interpreter. Idempotent: removing a non-member is not an error.
	RemoveInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) error

	// HasInterpreter reports whether a Server is permitted to run the given
	// Interpreter — the cross-entity invariant enforced before a Job may be
	// submitted.
	HasInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) (bool, error)

	// ListInterpreters returns every Interpreter a Server is permitted to run.
	ListInterpreters(ctx context.Context, serverID uuid.UUID) ([]*model.Interpreter, error)
}

// JobStore persists Job records.
type JobStore interface {
	Create(ctx context.Context, j *model.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	GetByUUID(ctx context.Context, jobUUID uuid.UUID) (*model.Job, error)
	Update(ctx context.Context, j *model.Job) error

	// UpdateStatus performs a partial update of just the Status column,
	// avoiding a read-modify-write race with concurrent log appends.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus) error

	List(ctx context.Context, opts ListOptions) ([]*model.Job, error)

	// ListByOwner returns the most recently modified Jobs owned by the given
	// username, most recent first — used to build the replay-on-subscribe
	// snapshot for a job-user-<username> topic.
	ListByOwner(ctx context.Context, ownerUsername string, opts ListOptions) ([]*model.Job, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

// LogStore persists Log records produced by a Job's execution.
type LogStore interface {
	// BulkCreate inserts a batch of Log records in a single statement —
	// mirrors the flush-buffer-at-once shape of the ingestion pipeline (C5).
	BulkCreate(ctx context.Context, logs []*model.Log) error

	// ListByJob returns every Log row for a Job in chronological order.
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Log, error)
}

// ResultStore persists Result records representing captured output files.
type ResultStore interface {
	Create(ctx context.Context, r *model.Result) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Result, error)
}
