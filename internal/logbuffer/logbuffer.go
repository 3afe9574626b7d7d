// Package logbuffer converts raw timestamped output chunks from an
// execution backend into persisted Log rows, according to one of three
// policies. It replaces the teacher's module-level stdout/stderr
// accumulators with a buffer object owned exclusively by one orchestrator
// invocation — its state is unreachable from any other call.
package logbuffer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/events"
	"github.com/runforge/runforge/internal/model"
	"github.com/runforge/runforge/internal/store"
)

// Policy selects how write_stdout/write_stderr convert chunks into Log rows.
type Policy string

const (
	// PolicyNone discards every chunk; no Log row is ever created.
	PolicyNone Policy = "NONE"
	// PolicyLive flushes after every write, so a handler invocation
	// produces at most one Log row per stream.
	PolicyLive Policy = "LIVE"
	// PolicyTotal accumulates until Flush is called once at the end of
	// execution, producing at most one Log row per stream overall.
	PolicyTotal Policy = "TOTAL"
)

// MetricsSink receives a counter for every Log row persisted.
type MetricsSink interface {
	LogRecordEmitted(stream string, policy string)
}

type chunk struct {
	time time.Time
	text string
}

// Buffer accumulates stdout/stderr chunks for one Job and converts them into
// Log rows under its configured Policy. Not safe for concurrent use by more
// than one orchestrator invocation — each invocation owns its own Buffer.
type Buffer struct {
	jobID  uuid.UUID
	policy Policy
	logs   store.LogStore
	hub    *events.Hub
	topic  string

	mu     sync.Mutex
	stdout []chunk
	stderr []chunk

	metrics MetricsSink
}

// New returns a Buffer bound to jobID, persisting through logs and
// (optionally) publishing through hub to the job-log-<jobID> topic. hub and
// metrics may be nil.
func New(jobID uuid.UUID, policy Policy, logs store.LogStore, hub *events.Hub, metrics MetricsSink) *Buffer {
	return &Buffer{
		jobID:   jobID,
		policy:  policy,
		logs:    logs,
		hub:     hub,
		topic:   events.JobLogTopic(jobID.String()),
		metrics: metrics,
	}
}

// WriteStdout appends a stdout chunk, flushing immediately under PolicyLive.
func (b *Buffer) WriteStdout(ctx context.Context, now time.Time, text string) error {
	return b.write(ctx, now, text, model.StreamStdout)
}

// WriteStderr appends a stderr chunk, flushing immediately under PolicyLive.
func (b *Buffer) WriteStderr(ctx context.Context, now time.Time, text string) error {
	return b.write(ctx, now, text, model.StreamStderr)
}

func (b *Buffer) write(ctx context.Context, now time.Time, text string, stream model.LogStream) error {
	if b.policy == PolicyNone || text == "" {
		return nil
	}

	b.mu.Lock()
	if stream == model.StreamStdout {
		b.stdout = append(b.stdout, chunk{now, text})
	} else {
		b.stderr = append(b.stderr, chunk{now, text})
	}
	b.mu.Unlock()

	if b.policy == PolicyLive {
		return b.Flush(ctx)
	}
	return nil
}

// Flush creates exactly one Log record per non-empty sequence — time is the
// last chunk's timestamp, content is the in-order concatenation of every
// chunk's text — then empties the sequence. Idempotent when both sequences
// are empty. Must be called once after the command finishes regardless of
// policy.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	var records []*model.Log
	if len(b.stdout) > 0 {
		records = append(records, buildLog(b.jobID, b.stdout, model.StreamStdout))
		b.stdout = nil
	}
	if len(b.stderr) > 0 {
		records = append(records, buildLog(b.jobID, b.stderr, model.StreamStderr))
		b.stderr = nil
	}
	b.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	if err := b.logs.BulkCreate(ctx, records); err != nil {
		return err
	}

	for _, r := range records {
		if b.metrics != nil {
			b.metrics.LogRecordEmitted(string(r.Stream), string(b.policy))
		}
		if b.hub != nil {
			b.hub.Publish(events.Envelope{
				Topic: b.topic,
				Payload: events.LogEvent{
					LogID:   r.ID.String(),
					Time:    r.Time,
					Content: r.Content,
					Stream:  string(r.Stream),
				},
			})
		}
	}
	return nil
}

func buildLog(jobID uuid.UUID, chunks []chunk, stream model.LogStream) *model.Log {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.text)
	}
	return &model.Log{
		JobID:   jobID,
		Time:    chunks[len(chunks)-1].time,
		Content: sb.String(),
		Stream:  stream,
	}
}
