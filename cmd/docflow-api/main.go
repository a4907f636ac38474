package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/calvere/docflow/pkg/cmd"
	"github.com/calvere/docflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "docflow-api",
		Usage:                 "Start the docflow REST API server",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   8080,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the tick lock used by POST /tick",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel, none)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "notifier-url",
				Usage:   "Webhook URL for outbound notifications (logged if unset)",
				Value:   "",
				Sources: cli.EnvVars("NOTIFIER_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("docflow-api")
			logger.Info("Initializing docflow API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to initialize persistence: %w", err)
			}
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "docflow-api", logger)
			if err != nil {
				return fmt.Errorf("failed to initialize event bus: %w", err)
			}
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			tickLock, err := cmd.NewTickLock(command.String("redis-url"))
			if err != nil {
				return fmt.Errorf("failed to initialize tick lock: %w", err)
			}

			sender := cmd.NewNotifier(command.String("notifier-url"), logger)

			api := NewAPI(logger, persistence, eventBus, sender, tickLock)

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		slog.Error("API terminated", "error", err)
		os.Exit(1)
	}
}
