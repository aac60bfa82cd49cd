// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/queryservice"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

// stack is the wired set of services shared by every command.
type stack struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	db      *index.DB
	notes   *noteservice.Service
	metrics *metrics.Metrics
	queries *queryservice.Service
}

func (s *stack) close() {
	s.queries.Stop()
	if err := s.db.Close(); err != nil {
		s.logger.Warn("close index", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

// bootstrap opens storage and the SQLite index and wires the note and query
// services on top of them.
func bootstrap(app *application) (*stack, error) {
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.Any("extensions", cfg.Vault.Extensions),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.Extensions...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	notes := noteservice.NewService(store, db, logger)
	m := metrics.New()
	queries := queryservice.New(notes, queryservice.Options{
		Engine:   cfg.Query.EngineOptions(),
		Debounce: cfg.Index.Debounce,
		Logger:   logger,
		Metrics:  m,
	})

	return &stack{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		db:      db,
		notes:   notes,
		metrics: m,
		queries: queries,
	}, nil
}

// watch keeps SQLite in step with the vault and schedules debounced
// rebuilds of the metadata index. onEvent may be nil.
func (s *stack) watch(ctx context.Context, onEvent index.EventCallback) error {
	return index.Watch(ctx, s.db, s.store, s.store.Root(), s.logger, func(kind, path string) {
		s.metrics.WatcherEvent(kind)
		if onEvent != nil {
			onEvent(kind, path)
		}
		s.queries.Schedule()
	})
}

func (s *stack) initialBuild(ctx context.Context) {
	if !s.cfg.Index.RebuildOnStart {
		return
	}
	if _, err := s.queries.Rebuild(ctx); err != nil {
		s.logger.Warn("initial index build failed", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger)

	st, err := bootstrap(app)
	if err != nil {
		return err
	}
	defer st.close()

	cfg := st.cfg
	logger := st.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	st.queries.OnRebuild(func(status queryservice.Status) {
		broker.PublishIndexRebuilt(status)
	})

	st.initialBuild(ctx)

	apiRouter := api.NewRouter(st.queries, st.notes, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(st.queries))
	r.Handle("/metrics", st.metrics.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Index.Watch {
		g.Go(func() error {
			if err := st.watch(gCtx, broker.PublishNoteEvent); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// readyHandler answers 503 until the first metadata index build completes.
func readyHandler(queries *queryservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !queries.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Query builds the index once, runs text against it and returns the
// submitQuery response.
func Query(ctx context.Context, text string, opts ...Option) (queryservice.Response, error) {
	app, err := newApplication(opts)
	if err != nil {
		return queryservice.Response{}, err
	}
	st, err := bootstrap(app)
	if err != nil {
		return queryservice.Response{}, err
	}
	defer st.close()

	if _, err := st.queries.Rebuild(ctx); err != nil {
		return queryservice.Response{}, fmt.Errorf("build index: %w", err)
	}
	return st.queries.Submit(ctx, text), nil
}

// ReindexReport summarises a reindex run.
type ReindexReport struct {
	Sync  index.SyncStats     `json:"sync"`
	Index queryservice.Status `json:"index"`
}

// Reindex reconciles SQLite with the vault and builds a fresh metadata index.
func Reindex(ctx context.Context, opts ...Option) (ReindexReport, error) {
	app, err := newApplication(opts)
	if err != nil {
		return ReindexReport{}, err
	}
	st, err := bootstrap(app)
	if err != nil {
		return ReindexReport{}, err
	}
	defer st.close()

	stats, err := st.notes.Sync(ctx)
	if err != nil {
		return ReindexReport{Sync: stats}, fmt.Errorf("sync: %w", err)
	}
	status, err := st.queries.Rebuild(ctx)
	if err != nil {
		return ReindexReport{Sync: stats}, fmt.Errorf("build index: %w", err)
	}
	return ReindexReport{Sync: stats, Index: status}, nil
}

// ServeMCP exposes the query tools over stdio until ctx is done or stdin
// closes.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	st, err := bootstrap(app)
	if err != nil {
		return err
	}
	defer st.close()

	st.initialBuild(ctx)

	srv := mcpserver.New(st.queries, st.store, st.notes)

	g, gCtx := errgroup.WithContext(ctx)
	if st.cfg.Index.Watch {
		g.Go(func() error {
			if err := st.watch(gCtx, nil); err != nil {
				st.logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := srv.ServeStdio(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}
