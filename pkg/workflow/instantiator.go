// Package workflow implements run instantiation, the automatic step advancer,
// the schedule resolver and the tick entry point.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvere/docflow/pkg/eventbus"
	"github.com/calvere/docflow/pkg/events"
	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/notifier"
	"github.com/calvere/docflow/pkg/persistence"
	"github.com/google/uuid"
)

// StartOptions carries the trigger-specific context of a new run.
type StartOptions struct {
	TriggerSource string
	DocumentID    string
	DocumentName  string
	StartedBy     string
	Priority      string
	ExtractedData map[string]any
}

// Instantiator creates a workflow instance with its step instances. Both the
// document trigger service and the schedule resolver start runs through it.
type Instantiator struct {
	persistence persistence.Persistence
	notifier    notifier.Notifier
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewInstantiator(
	store persistence.Persistence,
	sender notifier.Notifier,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Instantiator {
	return &Instantiator{
		persistence: store,
		notifier:    sender,
		publisher:   publisher,
		logger:      logger.With("module", "workflow_instantiator"),
	}
}

// Instantiate creates the instance and one step instance per template. The
// first step starts in_progress with its SLA deadline stamped; the rest start
// pending. An unassigned first step is created silently rather than failing
// the run.
func (i *Instantiator) Instantiate(ctx context.Context, definition *models.WorkflowDefinition, opts StartOptions) (*models.WorkflowInstance, error) {
	if len(definition.Steps) == 0 {
		return nil, fmt.Errorf("definition %s has no steps", definition.ID)
	}

	now := time.Now().UTC()

	metadata := map[string]any{
		"trigger_source": opts.TriggerSource,
	}
	if opts.ExtractedData != nil {
		metadata["extracted_data"] = opts.ExtractedData
	}

	instance := &models.WorkflowInstance{
		ID:            uuid.New().String(),
		WorkflowID:    definition.ID,
		Status:        models.InstanceStatusActive,
		CurrentStepID: definition.Steps[0].ID,
		DocumentID:    opts.DocumentID,
		DocumentName:  opts.DocumentName,
		Priority:      opts.Priority,
		StartedAt:     now,
		StartedBy:     opts.StartedBy,
		Metadata:      metadata,
	}

	err := i.persistence.Instances().Save(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to save instance: %w", err)
	}

	for index, template := range definition.Steps {
		step := &models.StepInstance{
			ID:         uuid.New().String(),
			InstanceID: instance.ID,
			StepID:     template.ID,
			Index:      index,
			Name:       template.Name,
			Type:       template.Type,
			Status:     models.StepStatusPending,
			Assignee:   template.Assignee,
			CreatedAt:  now,
		}

		if index == 0 {
			step.Status = models.StepStatusInProgress

			if template.SLAHours > 0 {
				due := now.Add(time.Duration(template.SLAHours) * time.Hour)
				step.SLADueAt = &due
			}
		}

		err := i.persistence.Steps().Save(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("failed to save step %s: %w", template.ID, err)
		}

		if index == 0 {
			i.notifyAssignment(ctx, definition, template, instance)
		}
	}

	err = i.persistence.Definitions().IncrementRunCount(ctx, definition.ID)
	if err != nil {
		i.logger.WarnContext(ctx, "Failed to increment run count",
			"workflow_id", definition.ID, "error", err)
	}

	event := events.WorkflowTriggered{
		BaseEvent:    events.NewBaseEvent(events.WorkflowTriggeredEvent, instance.ID),
		WorkflowID:   definition.ID,
		WorkflowName: definition.Name,
		TriggerType:  opts.TriggerSource,
		DocumentID:   opts.DocumentID,
		DocumentName: opts.DocumentName,
		StartedBy:    opts.StartedBy,
	}

	err = i.publisher.Publish(ctx, instance.ID, event)
	if err != nil {
		i.logger.WarnContext(ctx, "Failed to publish trigger event",
			"instance_id", instance.ID, "error", err)
	}

	i.logger.InfoContext(ctx, "Workflow instantiated",
		"workflow_id", definition.ID,
		"instance_id", instance.ID,
		"trigger", opts.TriggerSource,
	)

	return instance, nil
}

// notifyAssignment sends the activation notification to the step's assignee
// and separately to every configured CC address. Unassigned steps are skipped.
func (i *Instantiator) notifyAssignment(ctx context.Context, definition *models.WorkflowDefinition, template models.StepTemplate, instance *models.WorkflowInstance) {
	if template.Type.IsAutomatic() || template.Assignee == "" {
		return
	}

	recipients := append([]string{template.Assignee}, template.CC...)

	for _, recipient := range recipients {
		notification := notifier.Notification{
			To:      recipient,
			Subject: fmt.Sprintf("New step assigned: %s", template.Name),
			Body: fmt.Sprintf("Step %q of workflow %q is waiting for action on document %q.",
				template.Name, definition.Name, instance.DocumentName),
			Context: map[string]any{
				"workflow_name": definition.Name,
				"step_name":     template.Name,
				"assignee":      template.Assignee,
				"document_name": instance.DocumentName,
			},
		}

		err := i.notifier.Send(ctx, notification)
		if err != nil {
			i.logger.WarnContext(ctx, "Assignment notification failed",
				"instance_id", instance.ID, "recipient", recipient, "error", err)
		}
	}
}
