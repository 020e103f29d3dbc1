package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/heatpump-outbox/internal/app"
)

// RunServer starts the settings API and blocks until ctx is done or the server fails.
// With WORKER_ENABLED the outbox publisher and confirmation correlator run in the
// same process. The container must be shut down by the caller.
func RunServer(ctx context.Context, container *app.Container, version string) error {
	cfg := container.Config()
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	var workers []NamedWorker
	if cfg.WorkerEnabled {
		workers, err = containerWorkers(container, true, true)
		if err != nil {
			return err
		}
	}

	startMetricsServer(ctx, container, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gCtx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OutboxPublishTimeout+shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if len(workers) > 0 {
		g.Go(func() error {
			return RunWorkers(gCtx, logger, workers...)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startMetricsServer serves /metrics in the background when metrics are enabled.
// The container shuts it down.
func startMetricsServer(ctx context.Context, container *app.Container, logger *slog.Logger) {
	if !container.Config().MetricsEnabled {
		return
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		logger.Error("failed to initialize metrics server", slog.Any("error", err))
		return
	}

	if err := container.RegisterOutboxBacklog(); err != nil {
		logger.Warn("outbox backlog metrics unavailable", slog.Any("error", err))
	}

	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()
}
