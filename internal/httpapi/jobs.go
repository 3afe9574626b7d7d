package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/config"
	"github.com/runforge/runforge/internal/dispatch"
	"github.com/runforge/runforge/internal/logbuffer"
	"github.com/runforge/runforge/internal/model"
	"github.com/runforge/runforge/internal/store"
)

// JobHandler groups the Job CRUD handlers plus the Submit action, its Logs
// and Results sub-resources.
type JobHandler struct {
	jobs            store.JobStore
	servers         store.ServerStore
	logs            store.LogStore
	results         store.ResultStore
	asyncDispatcher dispatch.Dispatcher
	syncDispatcher  dispatch.Dispatcher
	logger          *zap.Logger
}

// newJobHandler takes two Dispatchers: asyncD is whichever strategy this
// deployment was configured with (queued/deferred/synchronous, selected via
// --dispatch-mode), and syncD always runs the submission inline regardless
// of deployment config. Submit picks between them per request via the
// ?async= query flag (SPEC_FULL.md §4.12).
func newJobHandler(jobs store.JobStore, servers store.ServerStore, logs store.LogStore, results store.ResultStore, asyncD, syncD dispatch.Dispatcher, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, servers: servers, logs: logs, results: results, asyncDispatcher: asyncD, syncDispatcher: syncD, logger: logger.Named("jobs")}
}

type jobRequest struct {
	Title           string `json:"title"`
	Program         string `json:"program"`
	RemoteDirectory string `json:"remote_directory"`
	RemoteFilename  string `json:"remote_filename"`
	ServerID        string `json:"server_id"`
	InterpreterID   string `json:"interpreter_id"`
}

type jobResponse struct {
	ID              string `json:"id"`
	UUID            string `json:"uuid"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	RemoteDirectory string `json:"remote_directory"`
	RemoteFilename  string `json:"remote_filename"`
	OwnerUsername   string `json:"owner_username"`
	ServerID        string `json:"server_id"`
	InterpreterID   string `json:"interpreter_id"`
}

func jobToResponse(j *model.Job) jobResponse {
	return jobResponse{
		ID:              j.ID.String(),
		UUID:            j.UUID.String(),
		Title:           j.Title,
		Status:          string(j.Status),
		RemoteDirectory: j.RemoteDirectory,
		RemoteFilename:  j.RemoteFilename,
		OwnerUsername:   j.OwnerUsername,
		ServerID:        j.ServerID.String(),
		InterpreterID:   j.InterpreterID.String(),
	}
}

// Create handles POST /api/v1/jobs. The Interpreter must already be a member
// of the Server at creation time — the same invariant Submit re-checks
// before every run, caught here as early as possible.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Program == "" || req.RemoteDirectory == "" || req.RemoteFilename == "" {
		errUnprocessable(w, "title, program, remote_directory, and remote_filename are required")
		return
	}

	serverID, err := parseUUID(req.ServerID)
	if err != nil {
		errBadRequest(w, "invalid server_id: must be a valid UUID")
		return
	}
	interpreterID, err := parseUUID(req.InterpreterID)
	if err != nil {
		errBadRequest(w, "invalid interpreter_id: must be a valid UUID")
		return
	}

	member, err := h.servers.HasInterpreter(r.Context(), serverID, interpreterID)
	if err != nil {
		h.logger.Error("failed to check interpreter membership", zap.Error(err))
		errInternal(w)
		return
	}
	if !member {
		errUnprocessable(w, "interpreter is not a member of server")
		return
	}

	claims := claimsFromCtx(r.Context())
	jobUUID, err := uuid.NewV7()
	if err != nil {
		h.logger.Error("failed to generate job uuid", zap.Error(err))
		errInternal(w)
		return
	}

	job := &model.Job{
		Title:           req.Title,
		UUID:            jobUUID,
		Program:         req.Program,
		Status:          model.JobInitial,
		RemoteDirectory: req.RemoteDirectory,
		RemoteFilename:  req.RemoteFilename,
		ServerID:        serverID,
		InterpreterID:   interpreterID,
	}
	if claims != nil {
		job.OwnerUsername = claims.Username
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.logger.Error("failed to create job", zap.Error(err))
		errInternal(w)
		return
	}
	created(w, jobToResponse(job))
}

// List handles GET /api/v1/jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.jobs.List(r.Context(), paginationOpts(r))
	if err != nil {
		h.logger.Error("failed to list jobs", zap.Error(err))
		errInternal(w)
		return
	}
	writeJobList(w, items)
}

// GetByID handles GET /api/v1/jobs/{id}.
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errNotFound(w)
			return
		}
		h.logger.Error("failed to get job", zap.Error(err))
		errInternal(w)
		return
	}
	ok(w, jobToResponse(job))
}

// Delete handles DELETE /api/v1/jobs/{id}.
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	if err := h.jobs.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete job", zap.Error(err))
		errInternal(w)
		return
	}
	noContent(w)
}

type submitRequest struct {
	Remote        *bool    `json:"remote"`
	LogPolicy     string   `json:"log_policy"`
	TimeoutSecs   int      `json:"timeout_seconds"`
	StoreResults  []string `json:"store_results"`
	PublicKeyPath string   `json:"public_key_path"`
	Username      string   `json:"username"`
	Password      string   `json:"password"`
}

// Submit handles POST /api/v1/jobs/{id}/submit. The async query flag picks
// the Dispatcher: unset or "true" uses whichever strategy this server was
// configured with via --dispatch-mode (queued, deferred, or synchronous);
// "false" forces the submission to run inline and block until it completes,
// regardless of deployment config.
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}

	async := true
	if raw := r.URL.Query().Get("async"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			errBadRequest(w, "async must be a boolean")
			return
		}
		async = parsed
	}

	var req submitRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	cfg := config.Default()
	if req.Remote != nil {
		cfg.Remote = *req.Remote
	}
	if req.LogPolicy != "" {
		cfg.LogPolicy = logbuffer.Policy(req.LogPolicy)
	}
	if req.TimeoutSecs > 0 {
		cfg.Timeout = time.Duration(req.TimeoutSecs) * time.Second
	}
	if req.StoreResults != nil {
		cfg.StoreResults = req.StoreResults
	}
	cfg.PublicKeyPath = req.PublicKeyPath
	cfg.Username = req.Username
	cfg.Password = req.Password

	dispatcher := h.asyncDispatcher
	if !async {
		dispatcher = h.syncDispatcher
	}

	if err := dispatcher.Dispatch(r.Context(), id, cfg); err != nil {
		h.logger.Error("failed to dispatch job submission", zap.Error(err), zap.String("job_id", id.String()), zap.Bool("async", async))
		errInternal(w)
		return
	}
	noContent(w)
}

type logResponse struct {
	Time    time.Time `json:"time"`
	Stream  string    `json:"stream"`
	Content string    `json:"content"`
}

// GetLogs handles GET /api/v1/jobs/{id}/logs.
func (h *JobHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	rows, err := h.logs.ListByJob(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list job logs", zap.Error(err))
		errInternal(w)
		return
	}
	resp := make([]logResponse, len(rows))
	for i, row := range rows {
		resp[i] = logResponse{Time: row.Time, Stream: string(row.Stream), Content: row.Content}
	}
	ok(w, resp)
}

type resultResponse struct {
	ID             string `json:"id"`
	RemoteFilename string `json:"remote_filename"`
	LocalFile      string `json:"local_file"`
}

// GetResults handles GET /api/v1/jobs/{id}/results.
func (h *JobHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	rows, err := h.results.ListByJob(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list job results", zap.Error(err))
		errInternal(w)
		return
	}
	resp := make([]resultResponse, len(rows))
	for i, row := range rows {
		resp[i] = resultResponse{ID: row.ID.String(), RemoteFilename: row.RemoteFilename, LocalFile: row.LocalFile}
	}
	ok(w, resp)
}

func writeJobList(w http.ResponseWriter, items []*model.Job) {
	resp := make([]jobResponse, len(items))
	for i, it := range items {
		resp[i] = jobToResponse(it)
	}
	ok(w, resp)
}
