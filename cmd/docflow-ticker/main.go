// Package main provides the docflow ticker service: the periodic scheduling
// and escalation control loop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/calvere/docflow/pkg/cmd"
	"github.com/calvere/docflow/pkg/escalation"
	"github.com/calvere/docflow/pkg/log"
	"github.com/calvere/docflow/pkg/otelhelper"
	"github.com/calvere/docflow/pkg/workflow"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "docflow-ticker",
		Usage:                 "Start the docflow scheduling and escalation ticker",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "ticker-id",
				Aliases: []string{"id"},
				Usage:   "Custom ticker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("TICKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the cross-instance tick lock (in-process lock if unset)",
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
			&cli.DurationFlag{
				Name:    "tick-interval",
				Usage:   "Interval between ticks",
				Value:   time.Minute,
				Sources: cli.EnvVars("TICK_INTERVAL"),
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

			tickerID := command.String("ticker-id")
			if tickerID == "" {
				tickerID = fmt.Sprintf("ticker-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("docflow-ticker").With("ticker_id", tickerID)
			logger.Info("Initializing docflow ticker")

			tracer, err := otelhelper.NewTracer(ctx, "docflow-ticker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to initialize persistence: %w", err)
			}
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "docflow-ticker", logger)
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

			instantiator := workflow.NewInstantiator(persistence, sender, eventBus, logger)
			advancer := workflow.NewAdvancer(persistence, sender, eventBus, logger)
			scheduler := workflow.NewScheduler(persistence, instantiator, advancer, logger)
			executor := escalation.NewExecutor(persistence.Steps(), persistence.Instances(), sender, advancer, eventBus, logger)
			processor := escalation.NewProcessor(persistence, executor, eventBus, logger)
			ticker := workflow.NewTicker(tickLock, scheduler, processor, logger)

			daemon := NewDaemon(tickerID, ticker, tracer, command.Duration("tick-interval"), logger)
			daemon.Start(ctx)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		slog.Error("Ticker terminated", "error", err)
		os.Exit(1)
	}
}
