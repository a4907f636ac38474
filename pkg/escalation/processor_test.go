package escalation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/calvere/docflow/pkg/eventbus"
	"github.com/calvere/docflow/pkg/events"
	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/notifier"
	"github.com/calvere/docflow/pkg/persistence/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdvancer struct {
	advanced []string
}

func (a *stubAdvancer) Advance(ctx context.Context, instance *models.WorkflowInstance) error {
	a.advanced = append(a.advanced, instance.ID)

	return nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) ofType(eventType events.EventType) []eventbus.Event {
	var matched []eventbus.Event

	for _, event := range p.events {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

type processorFixture struct {
	store     *file.Persistence
	processor *Processor
	recorder  *notifier.Recorder
	advancer  *stubAdvancer
	published *recordingPublisher
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	recorder := notifier.NewRecorder()
	advancer := &stubAdvancer{}
	published := &recordingPublisher{}
	logger := slog.Default()

	executor := NewExecutor(store.Steps(), store.Instances(), recorder, advancer, published, logger)
	processor := NewProcessor(store, executor, published, logger)

	return &processorFixture{
		store:     store,
		processor: processor,
		recorder:  recorder,
		advancer:  advancer,
		published: published,
	}
}

// seedRun persists a definition, an active instance and one in_progress
// approval step created the given duration ago.
func (f *processorFixture) seedRun(t *testing.T, createdAgo time.Duration) (*models.WorkflowDefinition, *models.WorkflowInstance, *models.StepInstance) {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()

	definition := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		Name:        "Invoice Approval",
		TriggerType: models.TriggerTypeDocumentUpload,
		Status:      models.DefinitionStatusActive,
		Steps: []models.StepTemplate{
			{ID: "manager_approval", Name: "Manager Approval", Type: models.StepTypeApproval, SLAHours: 24, Assignee: "manager@example.com"},
			{ID: "done_notice", Name: "Completion Notice", Type: models.StepTypeNotification},
		},
	}
	require.NoError(t, f.store.Definitions().Save(ctx, definition))

	instance := &models.WorkflowInstance{
		ID:           uuid.New().String(),
		WorkflowID:   definition.ID,
		Status:       models.InstanceStatusActive,
		DocumentName: "invoice-123.pdf",
		Priority:     "high",
		StartedAt:    now.Add(-createdAgo),
	}
	require.NoError(t, f.store.Instances().Save(ctx, instance))

	step := &models.StepInstance{
		ID:         uuid.New().String(),
		InstanceID: instance.ID,
		StepID:     "manager_approval",
		Index:      0,
		Name:       "Manager Approval",
		Type:       models.StepTypeApproval,
		Status:     models.StepStatusInProgress,
		Assignee:   "manager@example.com",
		CreatedAt:  now.Add(-createdAgo),
	}
	require.NoError(t, f.store.Steps().Save(ctx, step))

	return definition, instance, step
}

func (f *processorFixture) seedRule(t *testing.T, rule *models.EscalationRule) *models.EscalationRule {
	t.Helper()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	rule.IsActive = true
	require.NoError(t, f.store.Rules().Save(context.Background(), rule))

	return rule
}

func TestProcessor_NotifyRuleFiresOnce(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, instance, step := f.seedRun(t, 25*time.Hour)

	rule := f.seedRule(t, &models.EscalationRule{
		Name:              "notify after a day",
		IsGlobal:          true,
		TriggerAfterHours: 24,
		Conditions: []models.RuleCondition{
			{Type: models.ConditionHoursOverdue, Value: 24.0},
		},
		Actions: []models.RuleAction{{Type: models.ActionNotify}},
	})

	summary := f.processor.Process(ctx, time.Now().UTC())
	assert.Equal(t, 1, summary.StepsChecked)
	assert.Equal(t, 1, summary.EscalationsTriggered)
	assert.Equal(t, 1, summary.ActionsExecuted)
	assert.Empty(t, summary.Errors)

	// Notification falls back to the step assignee and carries the
	// audit context.
	sent := f.recorder.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "manager@example.com", sent[0].To)
	assert.Equal(t, "Invoice Approval", sent[0].Context["workflow_name"])
	assert.Equal(t, "invoice-123.pdf", sent[0].Context["document_name"])

	rows, err := f.store.History().ListByStep(ctx, step.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rule.ID, rows[0].RuleID)
	assert.Equal(t, 1, rows[0].EscalationLevel)

	gotStep, err := f.store.Steps().GetByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotStep.EscalationLevel)

	gotInstance, err := f.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotInstance.EscalationCount)

	gotRule, err := f.store.Rules().GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotRule.TriggerCount)
	require.NotNil(t, gotRule.LastTriggeredAt)
}

func TestProcessor_RuleExhaustion(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, _, step := f.seedRun(t, 100*time.Hour)

	f.seedRule(t, &models.EscalationRule{
		Name:               "repeat notify",
		IsGlobal:           true,
		TriggerAfterHours:  1,
		RepeatEveryMinutes: intPtr(0),
		MaxEscalations:     2,
		Actions:            []models.RuleAction{{Type: models.ActionNotify}},
	})

	for i := 0; i < 5; i++ {
		f.processor.Process(ctx, time.Now().UTC())
	}

	rows, err := f.store.History().ListByStep(ctx, step.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "history rows never exceed max_escalations")
}

func TestProcessor_SpecificRulesOverrideGlobal(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, inst, step := f.seedRun(t, 25*time.Hour)

	global := f.seedRule(t, &models.EscalationRule{
		Name:              "global notify",
		IsGlobal:          true,
		TriggerAfterHours: 1,
		Actions:           []models.RuleAction{{Type: models.ActionNotify, Recipients: []string{"global@example.com"}}},
	})

	specific := f.seedRule(t, &models.EscalationRule{
		Name:              "workflow notify",
		WorkflowID:        inst.WorkflowID,
		TriggerAfterHours: 1,
		Actions:           []models.RuleAction{{Type: models.ActionNotify, Recipients: []string{"specific@example.com"}}},
	})

	f.processor.Process(ctx, time.Now().UTC())

	sent := f.recorder.Sent()
	require.Len(t, sent, 1, "the matching specific rule suppresses the global one")
	assert.Equal(t, "specific@example.com", sent[0].To)

	rows, err := f.store.History().ListByStep(ctx, step.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, specific.ID, rows[0].RuleID)
	assert.NotEqual(t, global.ID, rows[0].RuleID)
}

func TestProcessor_AutoRejectHaltsInstance(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, instance, step := f.seedRun(t, 49*time.Hour)

	f.seedRule(t, &models.EscalationRule{
		Name:              "reject stale approvals",
		IsGlobal:          true,
		TriggerAfterHours: 48,
		Actions:           []models.RuleAction{{Type: models.ActionAutoReject}},
	})

	f.processor.Process(ctx, time.Now().UTC())

	gotStep, err := f.store.Steps().GetByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, gotStep.Status)
	assert.Equal(t, models.DecisionRejected, gotStep.Decision)
	assert.Equal(t, "Auto-rejected by escalation rule after SLA breach", gotStep.Comments)

	gotInstance, err := f.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusRejected, gotInstance.Status)
	require.NotNil(t, gotInstance.CompletedAt)

	assert.Empty(t, f.advancer.advanced, "auto-reject never advances the workflow")

	rejected := f.published.ofType(events.WorkflowRejectedEvent)
	require.Len(t, rejected, 1)
	event, ok := rejected[0].(events.WorkflowRejected)
	require.True(t, ok)
	assert.Equal(t, instance.ID, event.InstanceID)
	assert.Equal(t, step.ID, event.StepInstanceID)
	assert.Equal(t, "escalation", event.RejectedBy)
}

func TestProcessor_PauseWorkflowPublishesEvent(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, instance, step := f.seedRun(t, 49*time.Hour)

	f.seedRule(t, &models.EscalationRule{
		Name:              "pause stale runs",
		IsGlobal:          true,
		TriggerAfterHours: 48,
		Actions:           []models.RuleAction{{Type: models.ActionPauseWorkflow}},
	})

	f.processor.Process(ctx, time.Now().UTC())

	gotInstance, err := f.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusPaused, gotInstance.Status)
	assert.Equal(t, step.ID, gotInstance.Metadata["paused_by_step"])

	paused := f.published.ofType(events.WorkflowPausedEvent)
	require.Len(t, paused, 1)
	event, ok := paused[0].(events.WorkflowPaused)
	require.True(t, ok)
	assert.Equal(t, instance.ID, event.InstanceID)
	assert.Equal(t, step.ID, event.StepInstanceID)
}

func TestProcessor_ReassignIsNonTerminal(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, _, step := f.seedRun(t, 25*time.Hour)

	f.seedRule(t, &models.EscalationRule{
		Name:               "hand over",
		IsGlobal:           true,
		TriggerAfterHours:  1,
		RepeatEveryMinutes: intPtr(0),
		MaxEscalations:     3,
		Actions:            []models.RuleAction{{Type: models.ActionReassign, Target: "backup@example.com"}},
	})

	f.processor.Process(ctx, time.Now().UTC())

	gotStep, err := f.store.Steps().GetByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, "backup@example.com", gotStep.Assignee)
	assert.Equal(t, "manager@example.com", gotStep.Metadata["previous_assignee"])
	assert.Equal(t, models.StepStatusInProgress, gotStep.Status, "reassign leaves status unchanged")

	require.Len(t, f.recorder.Sent(), 1)

	// The step stays escalation-eligible up to max_escalations.
	f.processor.Process(ctx, time.Now().UTC())
	f.processor.Process(ctx, time.Now().UTC())
	f.processor.Process(ctx, time.Now().UTC())

	rows, err := f.store.History().ListByStep(ctx, step.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestProcessor_AutoApproveAdvances(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, instance, step := f.seedRun(t, 25*time.Hour)

	f.seedRule(t, &models.EscalationRule{
		Name:              "approve stale",
		IsGlobal:          true,
		TriggerAfterHours: 24,
		Conditions: []models.RuleCondition{
			{Type: models.ConditionHoursOverdue, Value: 24.0},
		},
		Actions: []models.RuleAction{{Type: models.ActionAutoApprove}},
	})

	f.processor.Process(ctx, time.Now().UTC())

	gotStep, err := f.store.Steps().GetByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, gotStep.Status)
	assert.Equal(t, models.DecisionApproved, gotStep.Decision)
	assert.Equal(t, true, gotStep.Metadata["auto_approved"])

	assert.Equal(t, []string{instance.ID}, f.advancer.advanced)

	rows, err := f.store.History().ListByStep(ctx, step.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "exactly one history row for the auto-approval")
}

func TestProcessor_SkipsNonActiveInstances(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, instance, _ := f.seedRun(t, 48*time.Hour)

	instance.Status = models.InstanceStatusPaused
	require.NoError(t, f.store.Instances().Save(ctx, instance))

	f.seedRule(t, &models.EscalationRule{
		Name:              "notify always",
		IsGlobal:          true,
		TriggerAfterHours: 1,
		Actions:           []models.RuleAction{{Type: models.ActionNotify}},
	})

	summary := f.processor.Process(ctx, time.Now().UTC())
	assert.Equal(t, 0, summary.EscalationsTriggered, "paused instances are not escalated")
	assert.Empty(t, f.recorder.Sent())
}

func TestProcessor_FlagsOverdueFromSLA(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)
	_, _, step := f.seedRun(t, 2*time.Hour)

	due := time.Now().UTC().Add(-time.Hour)
	step.SLADueAt = &due
	require.NoError(t, f.store.Steps().Save(ctx, step))

	f.processor.Process(ctx, time.Now().UTC())

	gotStep, err := f.store.Steps().GetByID(ctx, step.ID)
	require.NoError(t, err)
	assert.True(t, gotStep.IsOverdue)
}
