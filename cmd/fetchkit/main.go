package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fetchkit/fetchkit/internal/agent"
	"github.com/fetchkit/fetchkit/internal/config"
	"github.com/fetchkit/fetchkit/internal/fetch"
	"github.com/fetchkit/fetchkit/internal/http/rest"
	"github.com/fetchkit/fetchkit/internal/journal"
	"github.com/fetchkit/fetchkit/internal/logctx"
	"github.com/fetchkit/fetchkit/internal/storage/sqlite"
	"github.com/fetchkit/fetchkit/internal/telemetry"
	"github.com/fetchkit/fetchkit/internal/unpack"
)

const serviceName = "fetchkit"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("fetchkit starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

// buildLogger fans structured stdout logging out to the on-device
// journal file when one is configured.
func buildLogger(cfg *config.Config) *slog.Logger {
	stdout := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})

	if cfg.JournalPath == "" {
		return slog.New(stdout)
	}

	return slog.New(slogmulti.Fanout(
		stdout,
		journal.NewHandler(cfg.JournalPath, cfg.SlogLevel()),
	))
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer database.Close()

	repo := sqlite.NewJobRepository(database)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(telemetry.Config{Enabled: true, ServiceName: serviceName})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}

	// =========================================================================
	// Start Agent
	fetcher := fetch.New(fetch.Options{
		Client:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		UserAgent:    cfg.UserAgent,
		BufferSize:   cfg.BufferSize,
		InitAttempts: cfg.InitRetries,
	})

	worker := agent.New(fetcher, unpack.NewExtractor(), repo, tel, cfg.QueueSize)

	agentErrors := make(chan error, 1)

	go func() {
		agentErrors <- worker.Run(ctx)
	}()

	// =========================================================================
	// Start API Service
	api := rest.NewAPI(worker, repo, cfg.HistoryLimit)

	server := &http.Server{
		Addr:         cfg.Web.BindAddress,
		Handler:      api.Handler(tel.Handler()),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case err := <-agentErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("agent error: %w", err)
		}

		return nil
	case <-ctx.Done():
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	}
}
