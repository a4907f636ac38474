package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvere/docflow/pkg/conditions"
	"github.com/calvere/docflow/pkg/eventbus"
	"github.com/calvere/docflow/pkg/events"
	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/notifier"
	"github.com/calvere/docflow/pkg/persistence"
)

// Advancer moves an instance through its steps: it activates the next step,
// resolves runs of automatic condition and notification steps in one pass,
// and completes the instance when no steps remain. Manual steps halt it.
type Advancer struct {
	persistence persistence.Persistence
	notifier    notifier.Notifier
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewAdvancer(
	store persistence.Persistence,
	sender notifier.Notifier,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Advancer {
	return &Advancer{
		persistence: store,
		notifier:    sender,
		publisher:   publisher,
		logger:      logger.With("module", "workflow_advancer"),
	}
}

// CompleteStep records a manual decision on a step and advances the instance.
// A completed step is immutable; completing it again fails.
func (a *Advancer) CompleteStep(ctx context.Context, stepInstanceID string, decision models.Decision, comments, actor string) error {
	step, err := a.persistence.Steps().GetByID(ctx, stepInstanceID)
	if err != nil {
		return err
	}

	if step.Status == models.StepStatusCompleted {
		return fmt.Errorf("step %s: %w", stepInstanceID, persistence.ErrStepAlreadyCompleted)
	}

	now := time.Now().UTC()
	step.Status = models.StepStatusCompleted
	step.Decision = decision
	step.Comments = comments
	step.CompletedAt = &now
	step.CompletedBy = actor

	err = a.persistence.Steps().Save(ctx, step)
	if err != nil {
		return fmt.Errorf("failed to save completed step: %w", err)
	}

	instance, err := a.persistence.Instances().GetByID(ctx, step.InstanceID)
	if err != nil {
		return err
	}

	event := events.StepCompleted{
		BaseEvent:      events.NewBaseEvent(events.StepCompletedEvent, instance.ID),
		StepInstanceID: step.ID,
		StepID:         step.StepID,
		StepName:       step.Name,
		Decision:       string(decision),
		CompletedBy:    actor,
	}

	err = a.publisher.Publish(ctx, instance.ID, event)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to publish step completion",
			"step_instance_id", step.ID, "error", err)
	}

	if decision == models.DecisionRejected {
		return a.rejectInstance(ctx, instance, step, actor)
	}

	return a.Advance(ctx, instance)
}

// rejectInstance terminates a run after a rejected approval.
func (a *Advancer) rejectInstance(ctx context.Context, instance *models.WorkflowInstance, step *models.StepInstance, actor string) error {
	now := time.Now().UTC()
	instance.Status = models.InstanceStatusRejected
	instance.CompletedAt = &now

	err := a.persistence.Instances().Save(ctx, instance)
	if err != nil {
		return fmt.Errorf("failed to reject instance: %w", err)
	}

	event := events.WorkflowRejected{
		BaseEvent:      events.NewBaseEvent(events.WorkflowRejectedEvent, instance.ID),
		WorkflowID:     instance.WorkflowID,
		StepInstanceID: step.ID,
		Reason:         step.Comments,
		RejectedBy:     actor,
	}

	err = a.publisher.Publish(ctx, instance.ID, event)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to publish rejection",
			"instance_id", instance.ID, "error", err)
	}

	return nil
}

// Advance walks the instance's steps in template order. The loop is bounded
// by the step count, so a misconfigured branch target cannot spin forever.
func (a *Advancer) Advance(ctx context.Context, instance *models.WorkflowInstance) error {
	if instance.Status != models.InstanceStatusActive {
		return nil
	}

	definition, err := a.persistence.Definitions().GetByID(ctx, instance.WorkflowID)
	if err != nil {
		return err
	}

	steps, err := a.persistence.Steps().ListByInstance(ctx, instance.ID)
	if err != nil {
		return err
	}

	for range steps {
		current := nextOpenStep(steps)
		if current == nil {
			return a.finishInstance(ctx, instance)
		}

		if current.Status == models.StepStatusPending || current.Status == models.StepStatusBlocked {
			err := a.activateStep(ctx, definition, instance, current)
			if err != nil {
				return err
			}
		}

		if !current.Type.IsAutomatic() {
			instance.CurrentStepID = current.StepID

			return a.persistence.Instances().Save(ctx, instance)
		}

		err := a.processAutomaticStep(ctx, definition, instance, current, steps)
		if err != nil {
			return err
		}
	}

	if next := nextOpenStep(steps); next == nil {
		return a.finishInstance(ctx, instance)
	}

	return nil
}

// nextOpenStep returns the first step in template order that is not yet
// completed.
func nextOpenStep(steps []*models.StepInstance) *models.StepInstance {
	for _, step := range steps {
		if step.Status != models.StepStatusCompleted {
			return step
		}
	}

	return nil
}

func (a *Advancer) activateStep(ctx context.Context, definition *models.WorkflowDefinition, instance *models.WorkflowInstance, step *models.StepInstance) error {
	now := time.Now().UTC()
	step.Status = models.StepStatusInProgress

	template, _, found := definition.StepByID(step.StepID)
	if found && template.SLAHours > 0 {
		due := now.Add(time.Duration(template.SLAHours) * time.Hour)
		step.SLADueAt = &due
	}

	err := a.persistence.Steps().Save(ctx, step)
	if err != nil {
		return fmt.Errorf("failed to activate step %s: %w", step.ID, err)
	}

	if found && !template.Type.IsAutomatic() && template.Assignee != "" {
		recipients := append([]string{template.Assignee}, template.CC...)

		for _, recipient := range recipients {
			notification := notifier.Notification{
				To:      recipient,
				Subject: fmt.Sprintf("New step assigned: %s", step.Name),
				Body: fmt.Sprintf("Step %q of workflow %q is waiting for action on document %q.",
					step.Name, definition.Name, instance.DocumentName),
				Context: map[string]any{
					"workflow_name": definition.Name,
					"step_name":     step.Name,
					"assignee":      template.Assignee,
					"document_name": instance.DocumentName,
				},
			}

			sendErr := a.notifier.Send(ctx, notification)
			if sendErr != nil {
				a.logger.WarnContext(ctx, "Activation notification failed",
					"step_instance_id", step.ID, "recipient", recipient, "error", sendErr)
			}
		}
	}

	return nil
}

func (a *Advancer) processAutomaticStep(ctx context.Context, definition *models.WorkflowDefinition, instance *models.WorkflowInstance, step *models.StepInstance, steps []*models.StepInstance) error {
	template, _, found := definition.StepByID(step.StepID)
	if !found {
		template = models.StepTemplate{}
	}

	switch step.Type {
	case models.StepTypeCondition:
		err := a.processConditionStep(ctx, template, instance, step, steps)
		if err != nil {
			return err
		}
	case models.StepTypeNotification:
		a.processNotificationStep(ctx, template, definition, instance, step)
	}

	now := time.Now().UTC()
	step.Status = models.StepStatusCompleted
	step.CompletedAt = &now
	step.CompletedBy = "system"

	return a.persistence.Steps().Save(ctx, step)
}

// processConditionStep evaluates the template's condition against the data
// bag. A false result follows the template's on_false branch when one is
// defined; every step jumped over is completed with a skipped marker.
func (a *Advancer) processConditionStep(ctx context.Context, template models.StepTemplate, instance *models.WorkflowInstance, step *models.StepInstance, steps []*models.StepInstance) error {
	condition := conditions.Condition{
		Field:    stringConfig(template.Config, "field"),
		Operator: stringConfig(template.Config, "operator"),
		Value:    template.Config["value"],
	}

	extracted, _ := instance.Metadata["extracted_data"].(map[string]any)
	bag := conditions.BuildDataBag(extracted, instance.Metadata)

	result, evaluation := conditions.Evaluate(condition, bag)

	step.SetMetadata("condition_result", result)
	step.SetMetadata("evaluation", evaluation)

	a.logger.InfoContext(ctx, "Condition step evaluated",
		"step_instance_id", step.ID,
		"field", condition.Field,
		"result", result,
		"value_found", evaluation.ValueFound,
	)

	if result {
		return nil
	}

	target := stringConfig(template.Config, "on_false")
	if target == "" {
		return nil
	}

	return a.skipUntil(ctx, step, steps, target)
}

// skipUntil completes every open step between the condition and the branch
// target, marking each as skipped.
func (a *Advancer) skipUntil(ctx context.Context, from *models.StepInstance, steps []*models.StepInstance, targetStepID string) error {
	targetIndex := -1

	for _, candidate := range steps {
		if candidate.StepID == targetStepID {
			targetIndex = candidate.Index

			break
		}
	}

	if targetIndex <= from.Index {
		a.logger.WarnContext(ctx, "Branch target not found or behind current step",
			"step_instance_id", from.ID, "target", targetStepID)

		return nil
	}

	now := time.Now().UTC()

	for _, candidate := range steps {
		if candidate.Index <= from.Index || candidate.Index >= targetIndex {
			continue
		}

		if candidate.Status == models.StepStatusCompleted {
			continue
		}

		candidate.Status = models.StepStatusCompleted
		candidate.CompletedAt = &now
		candidate.CompletedBy = "system"
		candidate.SetMetadata("skipped", true)

		err := a.persistence.Steps().Save(ctx, candidate)
		if err != nil {
			return fmt.Errorf("failed to skip step %s: %w", candidate.ID, err)
		}
	}

	return nil
}

// processNotificationStep sends the configured notification. Delivery failure
// is logged and the step still completes.
func (a *Advancer) processNotificationStep(ctx context.Context, template models.StepTemplate, definition *models.WorkflowDefinition, instance *models.WorkflowInstance, step *models.StepInstance) {
	recipients := stringSliceConfig(template.Config, "recipients")
	if len(recipients) == 0 && template.Assignee != "" {
		recipients = []string{template.Assignee}
	}

	if len(recipients) == 0 {
		a.logger.WarnContext(ctx, "Notification step has no recipients",
			"step_instance_id", step.ID)

		return
	}

	subject := stringConfig(template.Config, "subject")
	if subject == "" {
		subject = fmt.Sprintf("Workflow update: %s", definition.Name)
	}

	body := stringConfig(template.Config, "message")
	if body == "" {
		body = fmt.Sprintf("Workflow %q reached step %q for document %q.",
			definition.Name, step.Name, instance.DocumentName)
	}

	for _, recipient := range recipients {
		err := a.notifier.Send(ctx, notifier.Notification{
			To:      recipient,
			Subject: subject,
			Body:    body,
			Context: map[string]any{
				"workflow_name": definition.Name,
				"step_name":     step.Name,
				"document_name": instance.DocumentName,
			},
		})
		if err != nil {
			a.logger.WarnContext(ctx, "Notification step delivery failed",
				"step_instance_id", step.ID, "recipient", recipient, "error", err)
		}
	}
}

func (a *Advancer) finishInstance(ctx context.Context, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()
	instance.Status = models.InstanceStatusCompleted
	instance.CurrentStepID = ""
	instance.CompletedAt = &now

	err := a.persistence.Instances().Save(ctx, instance)
	if err != nil {
		return fmt.Errorf("failed to complete instance: %w", err)
	}

	event := events.WorkflowFinished{
		BaseEvent:  events.NewBaseEvent(events.WorkflowFinishedEvent, instance.ID),
		WorkflowID: instance.WorkflowID,
		Duration:   now.Sub(instance.StartedAt),
	}

	err = a.publisher.Publish(ctx, instance.ID, event)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to publish completion",
			"instance_id", instance.ID, "error", err)
	}

	a.logger.InfoContext(ctx, "Workflow completed", "instance_id", instance.ID)

	return nil
}

func stringConfig(config map[string]any, key string) string {
	if config == nil {
		return ""
	}

	value, _ := config[key].(string)

	return value
}

func stringSliceConfig(config map[string]any, key string) []string {
	if config == nil {
		return nil
	}

	switch v := config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}
