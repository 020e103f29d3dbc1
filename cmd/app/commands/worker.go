package commands

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/heatpump-outbox/internal/app"
)

// Worker is a long running loop that stops when its context is done.
type Worker interface {
	Start(ctx context.Context) error
}

// NamedWorker pairs a worker with the name used in logs and errors.
type NamedWorker struct {
	Name   string
	Worker Worker
}

// RunWorkers runs every worker until ctx is done or one of them fails. A failing
// worker cancels the others. Cancellation is a clean exit.
func RunWorkers(ctx context.Context, logger *slog.Logger, workers ...NamedWorker) error {
	if len(workers) == 0 {
		return fmt.Errorf("no workers selected")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error {
			logger.Info("worker started", slog.String("worker", w.Name))
			err := w.Worker.Start(ctx)
			logger.Info("worker stopped", slog.String("worker", w.Name))
			if err != nil && !isShutdown(err) {
				return fmt.Errorf("%s: %w", w.Name, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// containerWorkers builds the selected outbox workers from the container.
func containerWorkers(container *app.Container, publisher, correlator bool) ([]NamedWorker, error) {
	var workers []NamedWorker

	if publisher {
		useCase, err := container.PublisherUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize outbox publisher: %w", err)
		}
		workers = append(workers, NamedWorker{Name: "publisher", Worker: useCase})
	}

	if correlator {
		useCase, err := container.CorrelatorUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize confirmation correlator: %w", err)
		}
		workers = append(workers, NamedWorker{Name: "correlator", Worker: useCase})
	}

	return workers, nil
}

// RunWorker starts the outbox publisher and/or the confirmation correlator and
// blocks until ctx is done. With neither flag set both workers run.
func RunWorker(ctx context.Context, container *app.Container, publisher, correlator bool) error {
	logger := container.Logger()

	if !publisher && !correlator {
		publisher, correlator = true, true
	}

	workers, err := containerWorkers(container, publisher, correlator)
	if err != nil {
		return err
	}

	startMetricsServer(ctx, container, logger)

	return RunWorkers(ctx, logger, workers...)
}
