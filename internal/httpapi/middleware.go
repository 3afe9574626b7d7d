package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/authz"
	"github.com/runforge/runforge/internal/store"
)

type contextKey int

const contextKeyUser contextKey = iota

// authenticate validates the JWT Bearer token in the Authorization header
// and stores the parsed claims in the request context.
func authenticate(v *authz.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				errUnauthorized(w)
				return
			}

			claims, err := v.Validate(parts[1])
			if err != nil {
				errUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUser, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func claimsFromCtx(ctx context.Context) *authz.Claims {
	claims, _ := ctx.Value(contextKeyUser).(*authz.Claims)
	return claims
}

// requestLogger logs every request with method, path, status, and latency.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// parseUUIDParam extracts and parses a UUID path parameter by name, writing
// a 400 and returning false if it is missing or malformed.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		errBadRequest(w, "invalid "+param+": must be a valid UUID")
		return uuid.UUID{}, false
	}
	return id, true
}

// parseUUID parses a UUID from a request body field, as opposed to a path
// parameter (see parseUUIDParam).
func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

// paginationOpts reads limit/offset query parameters. Defaults: limit=20,
// offset=0, capped at 100.
func paginationOpts(r *http.Request) store.ListOptions {
	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return store.ListOptions{Limit: limit, Offset: offset}
}
