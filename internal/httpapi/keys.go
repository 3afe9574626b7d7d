package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/keydeploy"
	"github.com/runforge/runforge/internal/store"
)

// KeyHandler exposes key deployment as an HTTP action against a Server.
type KeyHandler struct {
	servers store.ServerStore
	logger  *zap.Logger
}

func newKeyHandler(servers store.ServerStore, logger *zap.Logger) *KeyHandler {
	return &KeyHandler{servers: servers, logger: logger.Named("keys")}
}

type keyRequest struct {
	Remote        *bool  `json:"remote"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	PublicKeyPath string `json:"public_key_path"`
}

// Deploy handles POST /api/v1/servers/{id}/key.
func (h *KeyHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, keydeploy.CopyKeyToServer)
}

// Revoke handles DELETE /api/v1/servers/{id}/key.
func (h *KeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, keydeploy.DeleteKeyFromServer)
}

func (h *KeyHandler) withTarget(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, t keydeploy.Target) error) {
	id, isOK := parseUUIDParam(w, r, "id")
	if !isOK {
		return
	}
	srv, err := h.servers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errNotFound(w)
			return
		}
		h.logger.Error("failed to get server", zap.Error(err))
		errInternal(w)
		return
	}

	var req keyRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if req.PublicKeyPath == "" {
		errUnprocessable(w, "public_key_path is required")
		return
	}

	target := keydeploy.Target{
		Remote:        true,
		Hostname:      srv.Hostname,
		Username:      req.Username,
		Port:          srv.Port,
		Password:      req.Password,
		PublicKeyPath: req.PublicKeyPath,
	}
	if req.Remote != nil {
		target.Remote = *req.Remote
	}

	if err := op(r.Context(), target); err != nil {
		h.logger.Error("key deployment operation failed", zap.Error(err), zap.String("server_id", id.String()))
		errInternal(w)
		return
	}
	noContent(w)
}
