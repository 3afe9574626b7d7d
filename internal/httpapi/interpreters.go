package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/model"
	"github.com/runforge/runforge/internal/store"
)

// InterpreterHandler groups the Interpreter CRUD handlers.
type InterpreterHandler struct {
	store  store.InterpreterStore
	logger *zap.Logger
}

func newInterpreterHandler(s store.InterpreterStore, logger *zap.Logger) *InterpreterHandler {
	return &InterpreterHandler{store: s, logger: logger.Named("interpreters")}
}

type interpreterRequest struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Arguments []string `json:"arguments"`
}

type interpreterResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Arguments []string `json:"arguments"`
}

func interpreterToResponse(i *model.Interpreter) interpreterResponse {
	var args []string
	_ = json.Unmarshal([]byte(i.Arguments), &args)
	return interpreterResponse{ID: i.ID.String(), Name: i.Name, Path: i.Path, Arguments: args}
}

// Create handles POST /api/v1/interpreters.
func (h *InterpreterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req interpreterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Path == "" {
		errUnprocessable(w, "name and path are required")
		return
	}

	argsJSON, err := json.Marshal(req.Arguments)
	if err != nil {
		errBadRequest(w, "invalid arguments")
		return
	}

	interp := &model.Interpreter{Name: req.Name, Path: req.Path, Arguments: string(argsJSON)}
	if err := h.store.Create(r.Context(), interp); err != nil {
		h.logger.Error("failed to create interpreter", zap.Error(err))
		errInternal(w)
		return
	}
	created(w, interpreterToResponse(interp))
}

// List handles GET /api/v1/interpreters.
func (h *InterpreterHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context(), paginationOpts(r))
	if err != nil {
		h.logger.Error("failed to list interpreters", zap.Error(err))
		errInternal(w)
		return
	}
	resp := make([]interpreterResponse, len(items))
	for i, it := range items {
		resp[i] = interpreterToResponse(it)
	}
	ok(w, resp)
}

// GetByID handles GET /api/v1/interpreters/{id}.
func (h *InterpreterHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	interp, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errNotFound(w)
			return
		}
		h.logger.Error("failed to get interpreter", zap.Error(err))
		errInternal(w)
		return
	}
	ok(w, interpreterToResponse(interp))
}

// Delete handles DELETE /api/v1/interpreters/{id}.
func (h *InterpreterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete interpreter", zap.Error(err))
		errInternal(w)
		return
	}
	noContent(w)
}
