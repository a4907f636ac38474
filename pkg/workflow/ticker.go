package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvere/docflow/pkg/escalation"
	"github.com/calvere/docflow/pkg/lock"
	"github.com/google/uuid"
)

// lockTTL caps how long a crashed tick can hold the lock before another
// ticker instance may take over.
const lockTTL = 5 * time.Minute

// TickSummary is the structured result of one tick, suitable for logging
// and alerting. A tick never returns an error; failures are carried here.
type TickSummary struct {
	TickID           string              `json:"tick_id"`
	Skipped          bool                `json:"skipped"`
	WorkflowsStarted int                 `json:"workflows_started"`
	Escalation       *escalation.Summary `json:"escalation,omitempty"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	Errors           []string            `json:"errors,omitempty"`
}

// Ticker is the tick entry point: it takes the tick lock, runs the schedule
// resolver and then the escalation processor. All cross-tick state lives in
// the store; the ticker holds none.
type Ticker struct {
	lock      lock.TickLock
	scheduler *Scheduler
	processor *escalation.Processor
	logger    *slog.Logger
}

func NewTicker(
	tickLock lock.TickLock,
	scheduler *Scheduler,
	processor *escalation.Processor,
	logger *slog.Logger,
) *Ticker {
	return &Ticker{
		lock:      tickLock,
		scheduler: scheduler,
		processor: processor,
		logger:    logger.With("module", "ticker"),
	}
}

// RunTick executes one tick. When another instance holds the lock the tick
// is skipped, not queued; the next interval retries.
func (t *Ticker) RunTick(ctx context.Context) *TickSummary {
	now := time.Now().UTC()
	summary := &TickSummary{
		TickID:    uuid.New().String(),
		StartedAt: now,
	}

	acquired, err := t.lock.Acquire(ctx, lockTTL)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("failed to acquire tick lock: %v", err))
		summary.Skipped = true
		summary.FinishedAt = time.Now().UTC()

		return summary
	}

	if !acquired {
		t.logger.InfoContext(ctx, "Tick skipped, lock held elsewhere", "tick_id", summary.TickID)
		summary.Skipped = true
		summary.FinishedAt = time.Now().UTC()

		return summary
	}

	defer func() {
		releaseErr := t.lock.Release(ctx)
		if releaseErr != nil {
			t.logger.WarnContext(ctx, "Failed to release tick lock", "error", releaseErr)
		}
	}()

	started, schedulerErrs := t.scheduler.Resolve(ctx, now)
	summary.WorkflowsStarted = len(started)
	summary.Errors = append(summary.Errors, schedulerErrs...)

	summary.Escalation = t.processor.Process(ctx, now)
	summary.Errors = append(summary.Errors, summary.Escalation.Errors...)

	summary.FinishedAt = time.Now().UTC()

	t.logger.InfoContext(ctx, "Tick finished",
		"tick_id", summary.TickID,
		"workflows_started", summary.WorkflowsStarted,
		"steps_checked", summary.Escalation.StepsChecked,
		"escalations_triggered", summary.Escalation.EscalationsTriggered,
		"errors", len(summary.Errors),
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)

	return summary
}
