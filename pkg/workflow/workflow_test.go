package workflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/calvere/docflow/pkg/eventbus"
	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/notifier"
	"github.com/calvere/docflow/pkg/persistence/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store        *file.Persistence
	recorder     *notifier.Recorder
	instantiator *Instantiator
	advancer     *Advancer
	trigger      *TriggerService
	scheduler    *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	recorder := notifier.NewRecorder()
	bus := eventbus.NewNoopEventBus()
	logger := slog.Default()

	instantiator := NewInstantiator(store, recorder, bus, logger)
	advancer := NewAdvancer(store, recorder, bus, logger)

	return &fixture{
		store:        store,
		recorder:     recorder,
		instantiator: instantiator,
		advancer:     advancer,
		trigger:      NewTriggerService(store, instantiator, advancer, logger),
		scheduler:    NewScheduler(store, instantiator, advancer, logger),
	}
}

func (f *fixture) saveDefinition(t *testing.T, definition *models.WorkflowDefinition) *models.WorkflowDefinition {
	t.Helper()

	if definition.ID == "" {
		definition.ID = uuid.New().String()
	}

	if definition.Status == "" {
		definition.Status = models.DefinitionStatusActive
	}

	require.NoError(t, f.store.Definitions().Save(context.Background(), definition))

	return definition
}

func approvalDefinition(docTypes ...string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name:        "Invoice Approval",
		TriggerType: models.TriggerTypeDocumentUpload,
		TriggerConfig: models.TriggerConfig{
			DocumentTypes: docTypes,
		},
		Steps: []models.StepTemplate{
			{ID: "manager_approval", Name: "Manager Approval", Type: models.StepTypeApproval, SLAHours: 24, Assignee: "manager@example.com", CC: []string{"audit@example.com"}},
			{ID: "finance_review", Name: "Finance Review", Type: models.StepTypeTask, SLAHours: 48, Assignee: "finance@example.com"},
		},
	}
}

func invoiceEvent() models.DocumentEvent {
	return models.DocumentEvent{
		DocumentID:   uuid.New().String(),
		DocumentType: "invoice",
		DocumentName: "invoice-123.pdf",
		UserID:       "uploader@example.com",
		ExtractedData: map[string]any{
			"amount": 15000.0,
			"vendor": "Acme GmbH",
		},
	}
}

func (f *fixture) stepsOf(t *testing.T, instanceID string) []*models.StepInstance {
	t.Helper()

	steps, err := f.store.Steps().ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)

	return steps
}

func (f *fixture) instanceOf(t *testing.T, instanceID string) *models.WorkflowInstance {
	t.Helper()

	instance, err := f.store.Instances().GetByID(context.Background(), instanceID)
	require.NoError(t, err)

	return instance
}

func hoursAgo(h int) time.Time {
	return time.Now().UTC().Add(-time.Duration(h) * time.Hour)
}
