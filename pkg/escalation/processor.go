package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvere/docflow/pkg/eventbus"
	"github.com/calvere/docflow/pkg/events"
	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
	"github.com/google/uuid"
)

// Summary reports what one escalation pass did.
type Summary struct {
	StepsChecked         int       `json:"steps_checked"`
	EscalationsTriggered int       `json:"escalations_triggered"`
	ActionsExecuted      int       `json:"actions_executed"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
	Errors               []string  `json:"errors,omitempty"`
}

// Processor runs the escalation pass of a tick: it scans active steps,
// matches rules, gates re-triggers and executes actions. All state is
// re-derived from the store on every pass.
type Processor struct {
	persistence persistence.Persistence
	gate        *Gate
	executor    *Executor
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewProcessor(
	store persistence.Persistence,
	executor *Executor,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		persistence: store,
		gate:        NewGate(store.History()),
		executor:    executor,
		publisher:   publisher,
		logger:      logger.With("module", "escalation_processor"),
	}
}

// Process checks every active step against the applicable rules. Failures
// are isolated per step and per rule: they are recorded in the summary and
// never abort the pass.
func (p *Processor) Process(ctx context.Context, now time.Time) *Summary {
	summary := &Summary{StartedAt: now}

	steps, err := p.persistence.Steps().ListActive(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("failed to list active steps: %v", err))
		summary.FinishedAt = time.Now().UTC()

		return summary
	}

	for _, step := range steps {
		summary.StepsChecked++

		err := p.processStep(ctx, step, now, summary)
		if err != nil {
			p.logger.ErrorContext(ctx, "Step escalation check failed",
				"step_instance_id", step.ID, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("step %s: %v", step.ID, err))
		}
	}

	summary.FinishedAt = time.Now().UTC()

	return summary
}

func (p *Processor) processStep(ctx context.Context, step *models.StepInstance, now time.Time, summary *Summary) error {
	instance, err := p.persistence.Instances().GetByID(ctx, step.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to load instance: %w", err)
	}

	// Paused and terminal instances wait for a manual resume; their steps
	// are not escalation candidates.
	if instance.Status != models.InstanceStatusActive {
		return nil
	}

	definition, err := p.persistence.Definitions().GetByID(ctx, instance.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load definition: %w", err)
	}

	hoursOverdue := step.HoursSinceCreation(now)

	if !step.IsOverdue && step.SLADueAt != nil && now.After(*step.SLADueAt) {
		step.IsOverdue = true

		err = p.persistence.Steps().Save(ctx, step)
		if err != nil {
			p.logger.WarnContext(ctx, "Failed to flag overdue step",
				"step_instance_id", step.ID, "error", err)
		}
	}

	facts := Facts{
		StepType:     step.Type,
		HoursOverdue: hoursOverdue,
		Priority:     instance.Priority,
		Status:       step.Status,
	}

	rules, err := p.applicableRules(ctx, instance.WorkflowID, facts)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		// A terminal action from a previous rule may have completed the
		// step; later rules no longer apply to it.
		if !step.IsActive() {
			break
		}

		err := p.fireRule(ctx, rule, step, instance, definition, hoursOverdue, now, summary)
		if err != nil {
			p.logger.ErrorContext(ctx, "Rule processing failed",
				"rule_id", rule.ID, "step_instance_id", step.ID, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("rule %s on step %s: %v", rule.ID, step.ID, err))
		}
	}

	return nil
}

// applicableRules resolves the rule set for one step. Matching
// workflow-specific rules fully override matching global rules.
func (p *Processor) applicableRules(ctx context.Context, workflowID string, facts Facts) ([]*models.EscalationRule, error) {
	rules, err := p.persistence.Rules().ListActiveForWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	var specific, global []*models.EscalationRule

	for _, rule := range rules {
		if !Matches(rule, facts) {
			continue
		}

		if rule.IsGlobal {
			global = append(global, rule)
		} else {
			specific = append(specific, rule)
		}
	}

	if len(specific) > 0 {
		return specific, nil
	}

	return global, nil
}

func (p *Processor) fireRule(
	ctx context.Context,
	rule *models.EscalationRule,
	step *models.StepInstance,
	instance *models.WorkflowInstance,
	definition *models.WorkflowDefinition,
	hoursOverdue float64,
	now time.Time,
	summary *Summary,
) error {
	fire, err := p.gate.ShouldFire(ctx, rule, step, now)
	if err != nil {
		return err
	}

	if !fire {
		return nil
	}

	p.logger.InfoContext(ctx, "Escalation rule firing",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"step_instance_id", step.ID,
		"hours_overdue", hoursOverdue,
	)

	taken := p.executor.Execute(ctx, rule, Target{
		Step:         step,
		Instance:     instance,
		Definition:   definition,
		HoursOverdue: hoursOverdue,
	})

	step.EscalationLevel++
	instance.EscalationCount++
	rule.TriggerCount++
	rule.LastTriggeredAt = &now

	entry := &models.EscalationHistory{
		ID:              uuid.New().String(),
		RuleID:          rule.ID,
		InstanceID:      instance.ID,
		StepInstanceID:  step.ID,
		TriggeredAt:     now,
		ActionsTaken:    taken,
		EscalationLevel: step.EscalationLevel,
	}

	err = p.persistence.History().Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to append escalation history: %w", err)
	}

	err = p.persistence.Steps().Save(ctx, step)
	if err != nil {
		return fmt.Errorf("failed to save escalated step: %w", err)
	}

	err = p.persistence.Instances().Save(ctx, instance)
	if err != nil {
		return fmt.Errorf("failed to save escalated instance: %w", err)
	}

	err = p.persistence.Rules().Save(ctx, rule)
	if err != nil {
		return fmt.Errorf("failed to save rule stats: %w", err)
	}

	event := events.EscalationTriggered{
		BaseEvent:       events.NewBaseEvent(events.EscalationTriggeredEvent, instance.ID),
		RuleID:          rule.ID,
		RuleName:        rule.Name,
		StepInstanceID:  step.ID,
		ActionsTaken:    taken,
		EscalationLevel: step.EscalationLevel,
	}

	err = p.publisher.Publish(ctx, instance.ID, event)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to publish escalation event",
			"rule_id", rule.ID, "error", err)
	}

	summary.EscalationsTriggered++
	summary.ActionsExecuted += len(taken)

	return nil
}
