package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/runforge/runforge/internal/authz"
	"github.com/runforge/runforge/internal/db"
	"github.com/runforge/runforge/internal/dispatch"
	"github.com/runforge/runforge/internal/events"
	"github.com/runforge/runforge/internal/httpapi"
	"github.com/runforge/runforge/internal/logging"
	"github.com/runforge/runforge/internal/metrics"
	"github.com/runforge/runforge/internal/orchestrator"
	"github.com/runforge/runforge/internal/store"
	"github.com/runforge/runforge/internal/wsapi"
)

var (
	version = "dev"
	commit  = "none"
)

type config struct {
	httpAddr     string
	dbDriver     string
	dbDSN        string
	logLevel     string
	mediaRoot    string
	jwtPublicKey string
	jwtIssuer    string
	dispatchMode string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "runforge-server",
		Short: "runforge server — remote job execution service",
		Long: `runforge-server submits jobs to remote or local hosts over the
configured execution backend, persists their status/log/result trail, and
exposes it over a REST and WebSocket API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("RUNFORGE_HTTP_ADDR", ":8080"), "HTTP API listen address")
	root.PersistentFlags().StringVar(&cfg.dbDriver, "db-driver", envOrDefault("RUNFORGE_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	root.PersistentFlags().StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("RUNFORGE_DB_DSN", "./runforge.db"), "Database DSN or file path for SQLite")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("RUNFORGE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.mediaRoot, "data-dir", envOrDefault("RUNFORGE_DATA_DIR", "./data"), "Directory for captured result files")
	root.PersistentFlags().StringVar(&cfg.jwtPublicKey, "jwt-public-key", envOrDefault("RUNFORGE_JWT_PUBLIC_KEY", "./data/jwt_public.pem"), "PEM-encoded RSA public key used to verify bearer tokens")
	root.PersistentFlags().StringVar(&cfg.jwtIssuer, "jwt-issuer", envOrDefault("RUNFORGE_JWT_ISSUER", "runforge"), "Expected JWT issuer claim")
	root.PersistentFlags().StringVar(&cfg.dispatchMode, "dispatch-mode", envOrDefault("RUNFORGE_DISPATCH_MODE", "queued"), "Submission dispatch strategy: synchronous, queued, or deferred")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("runforge-server %s (commit: %s)\n", version, commit)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := logging.Build(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting runforge server",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
		zap.String("log_level", cfg.logLevel),
		zap.String("dispatch_mode", cfg.dispatchMode),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- 1. Database ---
	gormDB, err := db.New(db.Config{
		Driver:   cfg.dbDriver,
		DSN:      cfg.dbDSN,
		Logger:   logger,
		LogLevel: logging.GORMLevel(cfg.logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	// --- 2. Stores ---
	interpreterStore := store.NewGormInterpreterStore(gormDB)
	serverStore := store.NewGormServerStore(gormDB)
	jobStore := store.NewGormJobStore(gormDB)
	logStore := store.NewGormLogStore(gormDB)
	resultStore := store.NewGormResultStore(gormDB)

	// --- 3. Auth ---
	pubKeyPEM, err := os.ReadFile(cfg.jwtPublicKey)
	if err != nil {
		return fmt.Errorf("failed to read JWT public key %q: %w", cfg.jwtPublicKey, err)
	}
	validator, err := authz.NewValidatorFromPEM(pubKeyPEM, cfg.jwtIssuer)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT validator: %w", err)
	}

	// --- 4. Metrics ---
	metricsRegistry := prometheus.NewRegistry()
	appMetrics := metrics.New(metricsRegistry)

	// --- 5. Event fan-out ---
	hub := events.NewHub(appMetrics)
	go hub.Run(ctx)

	// --- 6. Orchestrator + Dispatcher ---
	orch := orchestrator.New(jobStore, serverStore, interpreterStore, logStore, resultStore, hub, cfg.mediaRoot, appMetrics)

	dispatcher, stopDispatcher, err := buildDispatcher(cfg.dispatchMode, orch, logger)
	if err != nil {
		return fmt.Errorf("failed to build dispatcher: %w", err)
	}
	defer stopDispatcher()

	// --- 7. HTTP + WebSocket servers ---
	router := chi.NewRouter()
	router.Mount("/", httpapi.NewRouter(httpapi.RouterConfig{
		Validator:      validator,
		Dispatcher:     dispatcher,
		SyncDispatcher: dispatch.NewSynchronous(orch),
		Interpreters:   interpreterStore,
		Servers:        serverStore,
		Jobs:           jobStore,
		Logs:           logStore,
		Results:        resultStore,
		Logger:         logger,
	}))
	router.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))

	wsHandler := wsapi.NewHandler(hub, jobStore, logStore, logger)
	router.Route("/ws", func(r chi.Router) {
		wsHandler.Routes(r)
	})

	httpSrv := &http.Server{
		Addr:         cfg.httpAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down runforge server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("runforge server stopped")
	return nil
}

// buildDispatcher constructs the Dispatcher named by mode and returns a stop
// function to be called during shutdown.
func buildDispatcher(mode string, orch *orchestrator.Orchestrator, logger *zap.Logger) (dispatch.Dispatcher, func(), error) {
	switch mode {
	case "synchronous":
		return dispatch.NewSynchronous(orch), func() {}, nil

	case "queued", "":
		q := dispatch.NewQueued(orch, logger)
		workerCtx, cancel := context.WithCancel(context.Background())
		go q.Run(workerCtx)
		return q, cancel, nil

	case "deferred":
		d, err := dispatch.NewDeferred(dispatch.NewSynchronous(orch), logger)
		if err != nil {
			return nil, nil, err
		}
		d.Start()
		return d, func() {
			if err := d.Stop(); err != nil {
				logger.Warn("deferred dispatcher shutdown error", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unrecognized dispatch mode %q, use \"synchronous\", \"queued\", or \"deferred\"", mode)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
