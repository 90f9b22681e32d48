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

	"github.com/amberlabs/amber/internal/api"
	"github.com/amberlabs/amber/internal/collectors"
	"github.com/amberlabs/amber/internal/gitwatch"
	"github.com/amberlabs/amber/internal/importer"
	"github.com/amberlabs/amber/internal/knowledge"
	"github.com/amberlabs/amber/internal/mcpserver"
	"github.com/amberlabs/amber/internal/query"
	"github.com/amberlabs/amber/internal/sse"
	"github.com/amberlabs/amber/internal/status"
	"github.com/amberlabs/amber/internal/store"
	"github.com/amberlabs/amber/internal/summarizer"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. MCP mode owns stdout for the
	// protocol, so logs go to stderr there.
	logOut := os.Stdout
	if app.mcpMode {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	baseDir := gitwatch.ExpandTilde(cfg.Storage.BaseDir)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("base_dir", baseDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := store.New(baseDir)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	graph := knowledge.NewGraph(st)

	// MCP mode: serve agent tools on stdio instead of the HTTP stack.
	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(st, graph).ServeStdio()
	}

	tracker := status.NewTracker()
	im := importer.New(st, logger, cfg.Sources.AgentRoots)

	var cs []query.Collector
	if cfg.Sources.BrowserHistoryPath != "" {
		cs = append(cs, collectors.NewBrowserHistory(gitwatch.ExpandTilde(cfg.Sources.BrowserHistoryPath)))
	}
	q := query.NewService(st, logger, cs...)

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	// Summarizer with a manual trigger channel shared with the API.
	provider := summarizer.NewProvider(cfg.Summarizer.APIBase, cfg.Summarizer.Model, cfg.Summarizer.APIKeyEnv)
	sum := summarizer.NewService(st, graph, provider, tracker, logger, func(date string) {
		broker.PublishNoteWritten(date)
		broker.PublishStatus(tracker.Snapshot())
	})
	trigger := make(chan struct{}, 1)

	// Build API handler and router.
	h := api.NewHandler(q, im, graph, st, tracker, broker, trigger, logger)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start git watcher.
	if cfg.Sources.Git.Enabled {
		watcher := gitwatch.New(gitwatch.Config{
			WatchPaths:   cfg.Sources.Git.WatchPaths,
			ScanDepth:    cfg.Sources.Git.ScanDepth,
			PollInterval: time.Duration(cfg.Schedule.IngestMinutes) * time.Minute,
		}, st, tracker, logger)
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	// Start the daily summarization scheduler.
	g.Go(func() error {
		return sum.RunScheduler(gCtx, cfg.Schedule.DailyHour, trigger)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
