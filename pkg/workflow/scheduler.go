package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// Scheduler resolves which schedule-triggered definitions are due on each
// tick and starts a run for each. A malformed schedule skips its definition
// for the tick, never the whole pass.
type Scheduler struct {
	persistence  persistence.Persistence
	instantiator *Instantiator
	advancer     *Advancer
	logger       *slog.Logger
}

func NewScheduler(
	store persistence.Persistence,
	instantiator *Instantiator,
	advancer *Advancer,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		persistence:  store,
		instantiator: instantiator,
		advancer:     advancer,
		logger:       logger.With("module", "workflow_scheduler"),
	}
}

// Resolve checks every active schedule-triggered definition for due-ness
// against its latest run and starts the due ones. Returns the IDs of the
// started instances and the per-definition errors it skipped over.
func (s *Scheduler) Resolve(ctx context.Context, now time.Time) ([]string, []string) {
	var started, errs []string

	definitions, err := s.persistence.Definitions().ListActiveByTrigger(ctx, models.TriggerTypeSchedule)
	if err != nil {
		return nil, []string{fmt.Sprintf("failed to list scheduled definitions: %v", err)}
	}

	for _, definition := range definitions {
		instanceID, err := s.resolveDefinition(ctx, definition, now)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping scheduled definition",
				"workflow_id", definition.ID, "error", err)
			errs = append(errs, fmt.Sprintf("definition %s: %v", definition.ID, err))

			continue
		}

		if instanceID != "" {
			started = append(started, instanceID)
		}
	}

	return started, errs
}

func (s *Scheduler) resolveDefinition(ctx context.Context, definition *models.WorkflowDefinition, now time.Time) (string, error) {
	spec := definition.TriggerConfig.Schedule
	if spec == nil {
		return "", fmt.Errorf("schedule trigger without schedule config")
	}

	var lastRun *time.Time

	latest, err := s.persistence.Instances().LatestByDefinition(ctx, definition.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load latest run: %w", err)
	}

	if latest != nil {
		lastRun = &latest.StartedAt
	}

	due, err := spec.IsDue(now, lastRun)
	if err != nil {
		return "", err
	}

	if !due {
		return "", nil
	}

	instance, err := s.instantiator.Instantiate(ctx, definition, StartOptions{
		TriggerSource: "schedule",
		StartedBy:     "scheduler",
	})
	if err != nil {
		return "", err
	}

	err = s.advancer.Advance(ctx, instance)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to advance scheduled instance",
			"instance_id", instance.ID, "error", err)
	}

	return instance.ID, nil
}
