package wsapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/events"
	"github.com/runforge/runforge/internal/model"
	"github.com/runforge/runforge/internal/store"
)

// recentJobsLimit bounds the replay-on-subscribe snapshot sent to a client
// that just subscribed to its job-user-<username> topic (spec.md §6).
const recentJobsLimit = 10

// Handler exposes the event Hub over two WebSocket endpoints: a per-user job
// dashboard feed and a per-job live log feed. Both replay recent history
// before handing the connection to the Hub's steady-state fan-out.
type Handler struct {
	hub    *events.Hub
	jobs   store.JobStore
	logs   store.LogStore
	logger *zap.Logger
}

// NewHandler returns a Handler wired to hub and the stores it replays from.
func NewHandler(hub *events.Hub, jobs store.JobStore, logs store.LogStore, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, jobs: jobs, logs: logs, logger: logger.Named("wsapi")}
}

// Routes mounts the WebSocket endpoints onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/jobs/{username}", h.ServeJobUser)
	r.Get("/jobs/{job_id}/logs", h.ServeJobLog)
}

// ServeJobUser upgrades the connection to the job-user-<username> topic and
// replays the most recently modified Jobs for that user before streaming
// live updates.
func (h *Handler) ServeJobUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	topic := events.JobUserTopic(username)
	client, err := newClient(h.hub, w, r, topic, h.logger)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	recent, err := h.jobs.ListByOwner(r.Context(), username, store.ListOptions{Limit: recentJobsLimit})
	if err != nil {
		h.logger.Warn("ws: failed to load replay snapshot", zap.Error(err), zap.String("username", username))
	}
	for _, job := range recent {
		enqueueReplay(client, topic, jobEventOf(job))
	}

	client.Run()
}

// ServeJobLog upgrades the connection to the job-log-<job_id> topic and
// replays every Log row recorded for that Job so far before streaming live
// output.
func (h *Handler) ServeJobLog(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "job_id")
	jobID, err := uuid.Parse(rawID)
	if err != nil {
		http.Error(w, "job_id must be a valid UUID", http.StatusBadRequest)
		return
	}

	topic := events.JobLogTopic(jobID.String())
	client, err := newClient(h.hub, w, r, topic, h.logger)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	history, err := h.logs.ListByJob(r.Context(), jobID)
	if err != nil {
		h.logger.Warn("ws: failed to load log replay history", zap.Error(err), zap.String("job_id", jobID.String()))
	}
	for _, l := range history {
		enqueueReplay(client, topic, logEventOf(l))
	}

	client.Run()
}

// enqueueReplay enqueues env directly onto the client's own send buffer
// rather than routing it through the Hub, so replay frames are delivered
// before the client is registered into the Hub's live fan-out and cannot be
// interleaved with or dropped by concurrent Publish calls.
func enqueueReplay(c *Client, topic string, payload any) {
	select {
	case c.sub.Send <- events.Envelope{Topic: topic, Payload: payload}:
	default:
		// Replay buffer capacity is bounded by sendBufferSize; a client that
		// cannot absorb its own history snapshot will catch up via the
		// live feed instead.
	}
}

func jobEventOf(j *model.Job) events.JobEvent {
	return events.JobEvent{
		JobID:    j.ID.String(),
		Title:    j.Title,
		Status:   string(j.Status),
		Modified: j.UpdatedAt,
	}
}

func logEventOf(l *model.Log) events.LogEvent {
	return events.LogEvent{
		LogID:   l.ID.String(),
		Time:    l.Time,
		Content: l.Content,
		Stream:  string(l.Stream),
	}
}
