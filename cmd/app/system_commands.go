package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/allisson/heatpump-outbox/cmd/app/commands"
	"github.com/allisson/heatpump-outbox/internal/app"
	"github.com/allisson/heatpump-outbox/internal/config"
)

// loadContainer loads and validates configuration and builds the DI container.
func loadContainer() (*app.Container, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.NewContainer(cfg), nil
}

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the settings API (and the outbox workers when WORKER_ENABLED=true)",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(context.Background()) }()

				ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer cancel()

				return commands.RunServer(ctx, container, version)
			},
		},
		{
			Name:  "worker",
			Usage: "Run the outbox publisher and/or the confirmation correlator",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "publisher",
					Usage: "Run the outbox publisher",
				},
				&cli.BoolFlag{
					Name:  "correlator",
					Usage: "Run the confirmation correlator",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(context.Background()) }()

				ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer cancel()

				return commands.RunWorker(ctx, container, cmd.Bool("publisher"), cmd.Bool("correlator"))
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply the settings and outbox schema migrations",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "rollback",
					Usage: "Roll back this many migrations instead of applying pending ones",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(
					container.Logger(), cfg.DBDriver, cfg.DBConnectionString, int(cmd.Int("rollback")),
				)
			},
		},
	}
}
