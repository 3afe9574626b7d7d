package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/authz"
	"github.com/runforge/runforge/internal/dispatch"
	"github.com/runforge/runforge/internal/store"
)

// RouterConfig holds every dependency NewRouter needs to build the REST
// surface. Populated once at startup and passed as a single struct so the
// constructor signature stays manageable as dependencies grow.
type RouterConfig struct {
	Validator *authz.Validator
	// Dispatcher is the deployment's configured submission strategy
	// (synchronous, queued, or deferred, selected via --dispatch-mode),
	// used when a Submit request's async flag is unset or true.
	Dispatcher dispatch.Dispatcher
	// SyncDispatcher always runs a submission inline; used when a Submit
	// request explicitly asks for async=false.
	SyncDispatcher dispatch.Dispatcher
	Interpreters   store.InterpreterStore
	Servers        store.ServerStore
	Jobs           store.JobStore
	Logs           store.LogStore
	Results        store.ResultStore
	Logger         *zap.Logger
}

// NewRouter builds the fully configured Chi router. Every route lives under
// /api/v1; only the health check is reachable without a bearer token.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	interpreterHandler := newInterpreterHandler(cfg.Interpreters, cfg.Logger)
	serverHandler := newServerHandler(cfg.Servers, cfg.Logger)
	jobHandler := newJobHandler(cfg.Jobs, cfg.Servers, cfg.Logs, cfg.Results, cfg.Dispatcher, cfg.SyncDispatcher, cfg.Logger)
	keyHandler := newKeyHandler(cfg.Servers, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Get("/healthz", healthCheck)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate(cfg.Validator))

			r.Route("/interpreters", func(r chi.Router) {
				r.Get("/", interpreterHandler.List)
				r.Post("/", interpreterHandler.Create)
				r.Get("/{id}", interpreterHandler.GetByID)
				r.Delete("/{id}", interpreterHandler.Delete)
			})

			r.Route("/servers", func(r chi.Router) {
				r.Get("/", serverHandler.List)
				r.Post("/", serverHandler.Create)
				r.Get("/{id}", serverHandler.GetByID)
				r.Delete("/{id}", serverHandler.Delete)

				r.Get("/{id}/interpreters", serverHandler.ListInterpreters)
				r.Post("/{id}/interpreters", serverHandler.AddInterpreter)
				r.Delete("/{id}/interpreters/{interpreter_id}", serverHandler.RemoveInterpreter)

				r.Post("/{id}/key", keyHandler.Deploy)
				r.Delete("/{id}/key", keyHandler.Revoke)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", jobHandler.List)
				r.Post("/", jobHandler.Create)
				r.Get("/{id}", jobHandler.GetByID)
				r.Delete("/{id}", jobHandler.Delete)
				r.Post("/{id}/submit", jobHandler.Submit)
				r.Get("/{id}/logs", jobHandler.GetLogs)
				r.Get("/{id}/results", jobHandler.GetResults)
			})
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	ok(w, envelope{"status": "ok"})
}
