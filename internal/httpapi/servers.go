package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/model"
	"github.com/runforge/runforge/internal/store"
)

// ServerHandler groups the Server CRUD handlers plus its Interpreter
// membership sub-resource.
type ServerHandler struct {
	store  store.ServerStore
	logger *zap.Logger
}

func newServerHandler(s store.ServerStore, logger *zap.Logger) *ServerHandler {
	return &ServerHandler{store: s, logger: logger.Named("servers")}
}

type serverRequest struct {
	Title    string `json:"title"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

type serverResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

func serverToResponse(s *model.Server) serverResponse {
	return serverResponse{ID: s.ID.String(), Title: s.Title, Hostname: s.Hostname, Port: s.Port}
}

// Create handles POST /api/v1/servers.
func (h *ServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req serverRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Hostname == "" {
		errUnprocessable(w, "title and hostname are required")
		return
	}
	if req.Port == 0 {
		req.Port = 22
	}

	srv := &model.Server{Title: req.Title, Hostname: req.Hostname, Port: req.Port}
	if err := h.store.Create(r.Context(), srv); err != nil {
		h.logger.Error("failed to create server", zap.Error(err))
		errInternal(w)
		return
	}
	created(w, serverToResponse(srv))
}

// List handles GET /api/v1/servers.
func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context(), paginationOpts(r))
	if err != nil {
		h.logger.Error("failed to list servers", zap.Error(err))
		errInternal(w)
		return
	}
	resp := make([]serverResponse, len(items))
	for i, it := range items {
		resp[i] = serverToResponse(it)
	}
	ok(w, resp)
}

// GetByID handles GET /api/v1/servers/{id}.
func (h *ServerHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	srv, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errNotFound(w)
			return
		}
		h.logger.Error("failed to get server", zap.Error(err))
		errInternal(w)
		return
	}
	ok(w, serverToResponse(srv))
}

// Delete handles DELETE /api/v1/servers/{id}.
func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete server", zap.Error(err))
		errInternal(w)
		return
	}
	noContent(w)
}

// ListInterpreters handles GET /api/v1/servers/{id}/interpreters.
func (h *ServerHandler) ListInterpreters(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	items, err := h.store.ListInterpreters(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list server interpreters", zap.Error(err))
		errInternal(w)
		return
	}
	resp := make([]interpreterResponse, len(items))
	for i, it := range items {
		resp[i] = interpreterToResponse(it)
	}
	ok(w, resp)
}

type interpreterMembershipRequest struct {
	InterpreterID string `json:"interpreter_id"`
}

// AddInterpreter handles POST /api/v1/servers/{id}/interpreters.
func (h *ServerHandler) AddInterpreter(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	var req interpreterMembershipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	interpID, err := parseUUID(req.InterpreterID)
	if err != nil {
		errBadRequest(w, "invalid interpreter_id: must be a valid UUID")
		return
	}
	if err := h.store.AddInterpreter(r.Context(), id, interpID); err != nil {
		h.logger.Error("failed to add interpreter to server", zap.Error(err))
		errInternal(w)
		return
	}
	noContent(w)
}

// RemoveInterpreter handles DELETE /api/v1/servers/{id}/interpreters/{interpreter_id}.
func (h *ServerHandler) RemoveInterpreter(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	interpID, isOK := parseUUIDParam(w, r, "interpreter_id")
	if !isOK {
		return
	}
	if err := h.store.RemoveInterpreter(r.Context(), id, interpID); err != nil {
		h.logger.Error("failed to remove interpreter from server", zap.Error(err))
		errInternal(w)
		return
	}
	noContent(w)
}
