package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/forcegraph/backend/internal/config"
	"github.com/onnwee/forcegraph/backend/internal/errorreporting"
	"github.com/onnwee/forcegraph/backend/internal/logger"
	"github.com/onnwee/forcegraph/backend/internal/server"
	"github.com/onnwee/forcegraph/backend/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// fine in containers; env comes from the orchestrator
		logger.Debug("no .env file found, using process environment")
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Options{
		ServiceName: "forcegraph-layout",
		Enabled:     cfg.OTELEnabled,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		logger.Warn("error reporting disabled", "error", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Error("server init failed", "error", err)
		os.Exit(1)
	}

	logger.Info("starting layout server", cfg.LogFields()...)
	runErr := srv.Start(ctx)

	if err := shutdownTracing(context.Background()); err != nil {
		logger.Warn("tracing shutdown failed", "error", err)
	}
	errorreporting.Flush(2 * time.Second)

	if runErr != nil {
		logger.Error("server stopped", "error", runErr)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
