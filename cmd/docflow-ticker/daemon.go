package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calvere/docflow/pkg/otelhelper"
	"github.com/calvere/docflow/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Daemon drives the ticker on a fixed interval until the process stops.
// SIGHUP restarts the loop with backoff; SIGINT and SIGTERM stop it.
type Daemon struct {
	id           string
	ticker       *workflow.Ticker
	tracer       trace.Tracer
	interval     time.Duration
	logger       *slog.Logger
	restartCount int
}

func NewDaemon(id string, ticker *workflow.Ticker, tracer trace.Tracer, interval time.Duration, logger *slog.Logger) *Daemon {
	return &Daemon{
		id:       id,
		ticker:   ticker,
		tracer:   tracer,
		interval: interval,
		logger:   logger.With("module", "daemon"),
	}
}

func (d *Daemon) Start(ctx context.Context) {
	dCtx, cancel := context.WithCancel(ctx)

	d.logger.Info("Starting ticker daemon", "interval", d.interval)

	d.handleSignals(dCtx, cancel)
	d.run(dCtx)
}

func (d *Daemon) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		d.logger.Info("Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			d.logger.Info("Reloading configuration...")
			d.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			d.logger.Info("Shutting down gracefully...")
			cancel()
		default:
			d.logger.Warn("Unhandled signal received", "signal", sig)
		}
	}()
}

// restart handles service restart with backoff.
func (d *Daemon) restart(ctx context.Context, cancel context.CancelFunc) {
	d.restartCount++
	newCtx := context.WithoutCancel(ctx)

	cancel()

	if d.restartCount > 5 {
		d.logger.Error("Restart limit reached, exiting...")
		os.Exit(1)
	}

	backoff := time.Duration(d.restartCount) * time.Second
	d.logger.Info("Restarting ticker daemon...", "backoff", backoff)
	time.Sleep(backoff)

	d.Start(newCtx)
}

// run executes one tick immediately and then one per interval.
func (d *Daemon) run(ctx context.Context) {
	d.tick(ctx)

	interval := time.NewTicker(d.interval)
	defer interval.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Ticker daemon context cancelled, stopping...")

			return
		case <-interval.C:
			d.tick(ctx)
		}
	}
}

func (d *Daemon) tick(ctx context.Context) {
	spanCtx, span := otelhelper.StartSpan(ctx, d.tracer, "ticker.tick",
		attribute.String(otelhelper.ServiceIDKey, d.id),
	)
	defer span.End()

	summary := d.ticker.RunTick(spanCtx)

	span.SetAttributes(
		attribute.String(otelhelper.TickIDKey, summary.TickID),
		attribute.Int("docflow.tick.workflows_started", summary.WorkflowsStarted),
		attribute.Bool("docflow.tick.skipped", summary.Skipped),
	)

	if len(summary.Errors) > 0 {
		otelhelper.SetError(span, fmt.Errorf("tick finished with %d errors", len(summary.Errors)))
	}
}
