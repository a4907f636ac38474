package escalation

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
)

const autoRejectDefaultReason = "Auto-rejected by escalation rule after SLA breach"

// InstanceAdvancer moves a workflow instance forward after a step completes.
// Implemented by the workflow package; declared here so auto_approve can
// advance without an import cycle.
type InstanceAdvancer interface {
	Advance(ctx context.Context, instance *models.WorkflowInstance) error
}

// Target bundles everything an action needs about the step being escalated.
type Target struct {
	Step         *models.StepInstance
	Instance     *models.WorkflowInstance
	Definition   *models.WorkflowDefinition
	HoursOverdue float64
}

// Executor runs a rule's action list in order. Each action is isolated: a
// failed action is logged and skipped so the remaining actions still run.
type Executor struct {
	steps     persistence.StepRepository
	instances persistence.InstanceRepository
	notifier  notifier.Notifier
	advancer  InstanceAdvancer
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewExecutor(
	steps persistence.StepRepository,
	instances persistence.InstanceRepository,
	sender notifier.Notifier,
	advancer InstanceAdvancer,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		steps:     steps,
		instances: instances,
		notifier:  sender,
		advancer:  advancer,
		publisher: publisher,
		logger:    logger.With("module", "escalation_executor"),
	}
}

// Execute runs every action of the rule against the target and returns the
// labels of the actions that succeeded.
func (e *Executor) Execute(ctx context.Context, rule *models.EscalationRule, target Target) []string {
	taken := make([]string, 0, len(rule.Actions))

	for _, action := range rule.Actions {
		label, err := e.execute(ctx, action, target)
		if err != nil {
			e.logger.ErrorContext(ctx, "Escalation action failed",
				"rule_id", rule.ID,
				"step_instance_id", target.Step.ID,
				"action", string(action.Type),
				"error", err,
			)

			continue
		}

		if label != "" {
			taken = append(taken, label)
		}
	}

	return taken
}

func (e *Executor) execute(ctx context.Context, action models.RuleAction, target Target) (string, error) {
	switch action.Type {
	case models.ActionNotify:
		return e.notify(ctx, action, target)
	case models.ActionReassign:
		return e.reassign(ctx, action, target)
	case models.ActionEscalateManager:
		return e.escalateManager(ctx, action, target)
	case models.ActionAutoApprove:
		return e.autoApprove(ctx, target)
	case models.ActionAutoReject:
		return e.autoReject(ctx, action, target)
	case models.ActionPauseWorkflow:
		return e.pauseWorkflow(ctx, target)
	default:
		return "", fmt.Errorf("unknown action type %q", action.Type)
	}
}

func (e *Executor) notify(ctx context.Context, action models.RuleAction, target Target) (string, error) {
	recipients := action.Recipients
	if len(recipients) == 0 && target.Step.Assignee != "" {
		recipients = []string{target.Step.Assignee}
	}

	if len(recipients) == 0 {
		e.logger.WarnContext(ctx, "Notify action has no recipients and step is unassigned",
			"step_instance_id", target.Step.ID)

		return "", nil
	}

	for _, recipient := range recipients {
		err := e.notifier.Send(ctx, e.overdueNotification(recipient, target))
		if err != nil {
			return "", fmt.Errorf("failed to notify %s: %w", recipient, err)
		}
	}

	return fmt.Sprintf("notify:%d", len(recipients)), nil
}

func (e *Executor) reassign(ctx context.Context, action models.RuleAction, target Target) (string, error) {
	if action.Target == "" {
		return "", fmt.Errorf("reassign action has no target")
	}

	step := target.Step
	step.SetMetadata("previous_assignee", step.Assignee)
	step.Assignee = action.Target

	err := e.steps.Save(ctx, step)
	if err != nil {
		return "", fmt.Errorf("failed to save reassigned step: %w", err)
	}

	notification := e.overdueNotification(action.Target, target)
	notification.Subject = fmt.Sprintf("Step reassigned to you: %s", step.Name)

	err = e.notifier.Send(ctx, notification)
	if err != nil {
		e.logger.WarnContext(ctx, "Reassignment notification failed",
			"step_instance_id", step.ID, "error", err)
	}

	return "reassign:" + action.Target, nil
}

func (e *Executor) escalateManager(ctx context.Context, action models.RuleAction, target Target) (string, error) {
	if action.Manager == "" {
		return "", fmt.Errorf("escalate_manager action has no manager address")
	}

	step := target.Step
	step.SetMetadata("escalated_to_manager", true)

	err := e.steps.Save(ctx, step)
	if err != nil {
		return "", fmt.Errorf("failed to tag escalated step: %w", err)
	}

	notification := e.overdueNotification(action.Manager, target)
	notification.Subject = fmt.Sprintf("Escalation: %s is overdue", step.Name)

	err = e.notifier.Send(ctx, notification)
	if err != nil {
		return "", fmt.Errorf("failed to notify manager: %w", err)
	}

	return "escalate_manager:" + action.Manager, nil
}

func (e *Executor) autoApprove(ctx context.Context, target Target) (string, error) {
	step := target.Step
	if step.Type != models.StepTypeApproval {
		e.logger.WarnContext(ctx, "Auto-approve skipped on non-approval step",
			"step_instance_id", step.ID, "step_type", string(step.Type))

		return "", nil
	}

	now := time.Now().UTC()
	step.Status = models.StepStatusCompleted
	step.Decision = models.DecisionApproved
	step.CompletedAt = &now
	step.CompletedBy = "escalation"
	step.SetMetadata("auto_approved", true)

	err := e.steps.Save(ctx, step)
	if err != nil {
		return "", fmt.Errorf("failed to save auto-approved step: %w", err)
	}

	if step.Assignee != "" {
		notification := e.overdueNotification(step.Assignee, target)
		notification.Subject = fmt.Sprintf("Step auto-approved: %s", step.Name)

		err = e.notifier.Send(ctx, notification)
		if err != nil {
			e.logger.WarnContext(ctx, "Auto-approval notification failed",
				"step_instance_id", step.ID, "error", err)
		}
	}

	err = e.advancer.Advance(ctx, target.Instance)
	if err != nil {
		return "", fmt.Errorf("failed to advance after auto-approval: %w", err)
	}

	return "auto_approve", nil
}

func (e *Executor) autoReject(ctx context.Context, action models.RuleAction, target Target) (string, error) {
	step := target.Step
	if step.Type != models.StepTypeApproval {
		e.logger.WarnContext(ctx, "Auto-reject skipped on non-approval step",
			"step_instance_id", step.ID, "step_type", string(step.Type))

		return "", nil
	}

	reason := action.Reason
	if reason == "" {
		reason = autoRejectDefaultReason
	}

	now := time.Now().UTC()
	step.Status = models.StepStatusCompleted
	step.Decision = models.DecisionRejected
	step.Comments = reason
	step.CompletedAt = &now
	step.CompletedBy = "escalation"

	err := e.steps.Save(ctx, step)
	if err != nil {
		return "", fmt.Errorf("failed to save auto-rejected step: %w", err)
	}

	instance := target.Instance
	instance.Status = models.InstanceStatusRejected
	instance.CompletedAt = &now

	err = e.instances.Save(ctx, instance)
	if err != nil {
		return "", fmt.Errorf("failed to reject instance: %w", err)
	}

	event := events.WorkflowRejected{
		BaseEvent:      events.NewBaseEvent(events.WorkflowRejectedEvent, instance.ID),
		WorkflowID:     instance.WorkflowID,
		StepInstanceID: step.ID,
		Reason:         reason,
		RejectedBy:     "escalation",
	}

	err = e.publisher.Publish(ctx, instance.ID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish rejection",
			"instance_id", instance.ID, "error", err)
	}

	if step.Assignee != "" {
		notification := e.overdueNotification(step.Assignee, target)
		notification.Subject = fmt.Sprintf("Step auto-rejected: %s", step.Name)
		notification.Body = reason

		err = e.notifier.Send(ctx, notification)
		if err != nil {
			e.logger.WarnContext(ctx, "Auto-rejection notification failed",
				"step_instance_id", step.ID, "error", err)
		}
	}

	return "auto_reject", nil
}

func (e *Executor) pauseWorkflow(ctx context.Context, target Target) (string, error) {
	instance := target.Instance
	instance.Status = models.InstanceStatusPaused

	if instance.Metadata == nil {
		instance.Metadata = make(map[string]any)
	}

	instance.Metadata["paused_by_step"] = target.Step.ID

	err := e.instances.Save(ctx, instance)
	if err != nil {
		return "", fmt.Errorf("failed to pause instance: %w", err)
	}

	event := events.WorkflowPaused{
		BaseEvent:      events.NewBaseEvent(events.WorkflowPausedEvent, instance.ID),
		WorkflowID:     instance.WorkflowID,
		StepInstanceID: target.Step.ID,
		Reason:         fmt.Sprintf("Paused by escalation at step %q", target.Step.Name),
	}

	err = e.publisher.Publish(ctx, instance.ID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish pause",
			"instance_id", instance.ID, "error", err)
	}

	if target.Step.Assignee != "" {
		notification := e.overdueNotification(target.Step.Assignee, target)
		notification.Subject = fmt.Sprintf("Workflow paused at step: %s", target.Step.Name)

		err = e.notifier.Send(ctx, notification)
		if err != nil {
			e.logger.WarnContext(ctx, "Pause notification failed",
				"step_instance_id", target.Step.ID, "error", err)
		}
	}

	return "pause_workflow", nil
}

// overdueNotification builds the standard escalation message: workflow name,
// step name, assignee, document name and days overdue.
func (e *Executor) overdueNotification(recipient string, target Target) notifier.Notification {
	workflowName := ""
	if target.Definition != nil {
		workflowName = target.Definition.Name
	}

	daysOverdue := target.HoursOverdue / 24

	return notifier.Notification{
		To:      recipient,
		Subject: fmt.Sprintf("Overdue step: %s", target.Step.Name),
		Body: fmt.Sprintf("Step %q of workflow %q (document %q, assignee %s) is %.1f days overdue.",
			target.Step.Name, workflowName, target.Instance.DocumentName, target.Step.Assignee, daysOverdue),
		Context: map[string]any{
			"workflow_name": workflowName,
			"step_name":     target.Step.Name,
			"assignee":      target.Step.Assignee,
			"document_name": target.Instance.DocumentName,
			"days_overdue":  daysOverdue,
		},
	}
}
