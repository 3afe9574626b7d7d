// Package dispatch decides which goroutine actually runs a Submission. The
// orchestrator's own code never depends on which Dispatcher is active — a
// caller (the REST layer, a CLI command, a test) only ever sees the
// Dispatcher interface.
package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/config"
	"github.com/runforge/runforge/internal/resultcapture"
)

// Submitter is satisfied by *orchestrator.Orchestrator. Dispatchers depend
// on this narrow interface instead of the concrete type so they can be unit
// tested with a fake.
type Submitter interface {
	Submit(ctx context.Context, jobID uuid.UUID, cfg config.Submission) (resultcapture.Manifest, error)
}

// Dispatcher hands a job submission off to whatever execution strategy it
// implements: inline, queued, or deferred.
type Dispatcher interface {
	// Dispatch arranges for jobID to be submitted with cfg. Depending on the
	// implementation it may run synchronously before returning, or only
	// enqueue the work and return immediately.
	Dispatch(ctx context.Context, jobID uuid.UUID, cfg config.Submission) error
}
