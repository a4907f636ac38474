package file

import (
	"context"
	"testing"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestDefinitionRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		ID:          "def-1",
		Name:        "Invoice Approval",
		TriggerType: models.TriggerTypeDocumentUpload,
		Status:      models.DefinitionStatusActive,
		Steps: []models.StepTemplate{
			{ID: "s1", Name: "Manager Approval", Type: models.StepTypeApproval, SLAHours: 24},
		},
	}

	require.NoError(t, p.Definitions().Save(ctx, definition))

	loaded, err := p.Definitions().GetByID(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice Approval", loaded.Name)
	assert.Len(t, loaded.Steps, 1)

	_, err = p.Definitions().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrDefinitionNotFound)
}

func TestDefinitionRepository_ListActiveByTrigger(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	step := models.StepTemplate{ID: "s1", Name: "Step", Type: models.StepTypeTask}
	for _, definition := range []*models.WorkflowDefinition{
		{ID: "d1", Name: "Upload A", TriggerType: models.TriggerTypeDocumentUpload, Status: models.DefinitionStatusActive, Steps: []models.StepTemplate{step}},
		{ID: "d2", Name: "Schedule B", TriggerType: models.TriggerTypeSchedule, Status: models.DefinitionStatusActive, Steps: []models.StepTemplate{step}},
		{ID: "d3", Name: "Upload C", TriggerType: models.TriggerTypeDocumentUpload, Status: models.DefinitionStatusInactive, Steps: []models.StepTemplate{step}},
	} {
		require.NoError(t, p.Definitions().Save(ctx, definition))
	}

	uploads, err := p.Definitions().ListActiveByTrigger(ctx, models.TriggerTypeDocumentUpload)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "d1", uploads[0].ID)
}

func TestDefinitionRepository_IncrementRunCount(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	definition := &models.WorkflowDefinition{
		ID: "def-1", Name: "Some Flow", TriggerType: models.TriggerTypeManual,
		Steps: []models.StepTemplate{{ID: "s1", Name: "Step", Type: models.StepTypeTask}},
	}
	require.NoError(t, p.Definitions().Save(ctx, definition))
	require.NoError(t, p.Definitions().IncrementRunCount(ctx, "def-1"))
	require.NoError(t, p.Definitions().IncrementRunCount(ctx, "def-1"))

	loaded, err := p.Definitions().GetByID(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.RunCount)
}

func TestInstanceRepository_LatestByDefinition(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	for _, instance := range []*models.WorkflowInstance{
		{ID: "i1", WorkflowID: "wf-1", StartedAt: base},
		{ID: "i2", WorkflowID: "wf-1", StartedAt: base.Add(time.Hour)},
		{ID: "i3", WorkflowID: "wf-2", StartedAt: base.Add(2 * time.Hour)},
	} {
		require.NoError(t, p.Instances().Save(ctx, instance))
	}

	latest, err := p.Instances().LatestByDefinition(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "i2", latest.ID)

	none, err := p.Instances().LatestByDefinition(ctx, "wf-9")
	require.NoError(t, err)
	assert.Nil(t, none, "no runs yet yields nil, not an error")
}

func TestStepRepository_ListActive(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	for _, step := range []*models.StepInstance{
		{ID: "st1", InstanceID: "i1", Status: models.StepStatusInProgress, Index: 0},
		{ID: "st2", InstanceID: "i1", Status: models.StepStatusPending, Index: 1},
		{ID: "st3", InstanceID: "i1", Status: models.StepStatusCompleted, Index: 2},
		{ID: "st4", InstanceID: "i2", Status: models.StepStatusBlocked, Index: 0},
	} {
		require.NoError(t, p.Steps().Save(ctx, step))
	}

	active, err := p.Steps().ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2, "only pending and in_progress are escalation candidates")

	byInstance, err := p.Steps().ListByInstance(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, byInstance, 3)
	assert.Equal(t, "st1", byInstance[0].ID, "steps come back in template order")
}

func TestRuleRepository_ListActiveForWorkflow(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	for _, rule := range []*models.EscalationRule{
		{ID: "r1", Name: "global", IsGlobal: true, IsActive: true, TriggerAfterHours: 1},
		{ID: "r2", Name: "specific", WorkflowID: "wf-1", IsActive: true, TriggerAfterHours: 1},
		{ID: "r3", Name: "other wf", WorkflowID: "wf-2", IsActive: true, TriggerAfterHours: 1},
		{ID: "r4", Name: "inactive", IsGlobal: true, IsActive: false, TriggerAfterHours: 1},
	} {
		require.NoError(t, p.Rules().Save(ctx, rule))
	}

	rules, err := p.Rules().ListActiveForWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, rules, 2, "global plus wf-1 specific, active only")
}

func TestHistoryRepository_Queries(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	for _, entry := range []*models.EscalationHistory{
		{ID: "h1", RuleID: "r1", StepInstanceID: "st1", TriggeredAt: base},
		{ID: "h2", RuleID: "r1", StepInstanceID: "st1", TriggeredAt: base.Add(time.Hour)},
		{ID: "h3", RuleID: "r2", StepInstanceID: "st1", TriggeredAt: base.Add(2 * time.Hour)},
	} {
		require.NoError(t, p.History().Append(ctx, entry))
	}

	count, err := p.History().CountForRuleStep(ctx, "r1", "st1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	latest, err := p.History().LatestForRuleStep(ctx, "r1", "st1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "h2", latest.ID)

	missing, err := p.History().LatestForRuleStep(ctx, "r9", "st1")
	require.NoError(t, err)
	assert.Nil(t, missing, "first fire has no prior history")

	byStep, err := p.History().ListByStep(ctx, "st1")
	require.NoError(t, err)
	assert.Len(t, byStep, 3)
}
