// Package orchestrator sequences one job's end-to-end run: connect, upload,
// mark-submitted, execute-with-streaming, flush-logs, mark-terminal,
// capture-results. It is the one place that drives the execution-backend
// interface, the log buffer, and result capture together.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/backend"
	"github.com/runforge/runforge/internal/config"
	"github.com/runforge/runforge/internal/events"
	"github.com/runforge/runforge/internal/logbuffer"
	"github.com/runforge/runforge/internal/model"
	"github.com/runforge/runforge/internal/rerrors"
	"github.com/runforge/runforge/internal/resultcapture"
	"github.com/runforge/runforge/internal/store"
)

// Metrics receives submission duration/outcome and log-record counters. All
// methods are invoked via constructor injection, never a package global.
type Metrics interface {
	SubmissionFinished(outcome string, duration time.Duration)
	logbuffer.MetricsSink
}

// Orchestrator drives one job's run at a time per call to Submit; multiple
// calls may run concurrently against different jobs, each owning its own
// backend session.
type Orchestrator struct {
	Jobs         store.JobStore
	Servers      store.ServerStore
	Interpreters store.InterpreterStore
	Logs         store.LogStore
	Results      store.ResultStore
	Hub          *events.Hub
	MediaRoot    string
	Metrics      Metrics

	// NewBackend constructs a Backend for (remote, hostname, username,
	// port). Overridable in tests; defaults to backend.NewRemote/NewLocal.
	NewBackend func(remote bool, hostname, username string, port int) backend.Backend
}

// New returns an Orchestrator wired to the given collaborators. hub and
// metrics may be nil.
func New(jobs store.JobStore, servers store.ServerStore, interpreters store.InterpreterStore, logs store.LogStore, results store.ResultStore, hub *events.Hub, mediaRoot string, metrics Metrics) *Orchestrator {
	return &Orchestrator{
		Jobs:         jobs,
		Servers:      servers,
		Interpreters: interpreters,
		Logs:         logs,
		Results:      results,
		Hub:          hub,
		MediaRoot:    mediaRoot,
		Metrics:      metrics,
		NewBackend:   defaultNewBackend,
	}
}

func defaultNewBackend(remote bool, hostname, username string, port int) backend.Backend {
	if remote {
		return backend.NewRemote(hostname, username, port)
	}
	return backend.NewLocal()
}

// Submit runs jobID's connect → upload → mark-submitted → exec →
// flush-logs → mark-terminal → capture-results pipeline and returns the
// result manifest. It never retries; retry is a caller-layer policy.
func (o *Orchestrator) Submit(ctx context.Context, jobID uuid.UUID, cfg config.Submission) (resultcapture.Manifest, error) {
	started := time.Now()
	manifest, err := o.submit(ctx, jobID, cfg)
	if o.Metrics != nil {
		o.Metrics.SubmissionFinished(outcomeLabel(err), time.Since(started))
	}
	return manifest, err
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}

func (o *Orchestrator) submit(ctx context.Context, jobID uuid.UUID, cfg config.Submission) (resultcapture.Manifest, error) {
	job, err := o.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	username := cfg.Username
	if username == "" {
		username = job.OwnerUsername
	}

	srv, err := o.Servers.GetByID(ctx, job.ServerID)
	if err != nil {
		return nil, err
	}
	interp, err := o.Interpreters.GetByID(ctx, job.InterpreterID)
	if err != nil {
		return nil, err
	}

	member, err := o.Servers.HasInterpreter(ctx, job.ServerID, job.InterpreterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, rerrors.NewValidationError("job interpreter is not a member of job server")
	}

	logPolicy := cfg.LogPolicy
	if logPolicy == "" {
		logPolicy = logbuffer.PolicyLive
	}
	buf := logbuffer.New(job.ID, logPolicy, o.Logs, o.Hub, o.Metrics)

	be := o.NewBackend(cfg.Remote, srv.Hostname, username, srv.Port)
	sess, err := be.Connect(ctx, backend.ConnectOptions{Password: cfg.Password, PublicKeyPath: cfg.PublicKeyPath})
	if err != nil {
		// AuthError: surfaced before any Job mutation.
		return nil, err
	}
	defer sess.Close()

	if err := sess.Chdir(ctx, job.RemoteDirectory); err != nil {
		return nil, rerrors.NewTransportError("changing to job working directory", err)
	}

	f, err := sess.Open(ctx, job.RemoteFilename, backend.WriteOnly)
	if err != nil {
		o.markTerminal(ctx, job, model.JobFailure)
		return nil, rerrors.NewUploadError("opening remote program file", err)
	}
	if _, werr := f.Write([]byte(job.Program)); werr != nil {
		f.Close()
		o.markTerminal(ctx, job, model.JobFailure)
		return nil, rerrors.NewUploadError("writing program text", werr)
	}
	// Close acts as the upload's commit point: both the SFTP and local
	// backends only return from Close once the bytes have actually landed,
	// so no additional grace period is needed before exec.
	if err := f.Close(); err != nil {
		o.markTerminal(ctx, job, model.JobFailure)
		return nil, rerrors.NewUploadError("closing remote program file", err)
	}

	if err := o.Jobs.UpdateStatus(ctx, job.ID, model.JobSubmitted); err != nil {
		return nil, rerrors.NewTransportError("persisting submitted status", err)
	}
	job.Status = model.JobSubmitted
	o.publishJobEvent(job)

	argv := append([]string{interp.Path}, parseArguments(interp.Arguments)...)
	argv = append(argv, job.RemoteFilename)

	ok, execErr := sess.ExecCommand(ctx, argv, job.RemoteDirectory, cfg.Timeout,
		func(now time.Time, chunk string) { _ = buf.WriteStdout(ctx, now, chunk) },
		func(now time.Time, chunk string) { _ = buf.WriteStderr(ctx, now, chunk) },
	)
	if execErr != nil {
		_ = buf.Flush(ctx)
		o.markTerminal(ctx, job, model.JobFailure)
		return nil, rerrors.NewTransportError("executing command", execErr)
	}

	if err := buf.Flush(ctx); err != nil {
		o.markTerminal(ctx, job, model.JobFailure)
		return nil, rerrors.NewTransportError("flushing log buffer", err)
	}

	finalStatus := model.JobFailure
	if ok {
		finalStatus = model.JobSuccess
	}
	o.markTerminal(ctx, job, finalStatus)

	manifest, ingestErr := resultcapture.Capture(ctx, sess, job.ID, job.UUID, job.RemoteFilename, cfg.StoreResults, o.MediaRoot, o.Results)
	return manifest, ingestErr
}

func (o *Orchestrator) markTerminal(ctx context.Context, job *model.Job, status model.JobStatus) {
	_ = o.Jobs.UpdateStatus(ctx, job.ID, status)
	job.Status = status
	o.publishJobEvent(job)
}

func (o *Orchestrator) publishJobEvent(job *model.Job) {
	if o.Hub == nil {
		return
	}
	o.Hub.Publish(events.Envelope{
		Topic: events.JobUserTopic(job.OwnerUsername),
		Payload: events.JobEvent{
			JobID:    job.ID.String(),
			Title:    job.Title,
			Status:   string(job.Status),
			Modified: time.Now(),
		},
	})
}

func parseArguments(raw string) []string {
	if raw == "" {
		return nil
	}
	var args []string
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}
