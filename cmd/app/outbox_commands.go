package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/heatpump-outbox/cmd/app/commands"
)

func getOutboxCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "outbox-status",
			Usage: "Show the delivery status of a settings change",
			Flags: []cli.Flag{
				&cli.Int64Flag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Outbox entry ID",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   commands.FormatText,
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				outboxUseCase, err := container.OutboxUseCase()
				if err != nil {
					return err
				}

				return commands.RunOutboxStatus(
					ctx,
					outboxUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Int64("id"),
					cmd.String("format"),
				)
			},
		},
	}
}
