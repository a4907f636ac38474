package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calvere/docflow/pkg/escalation"
	"github.com/calvere/docflow/pkg/eventbus"
	"github.com/calvere/docflow/pkg/lock"
	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/notifier"
	"github.com/calvere/docflow/pkg/persistence/file"
	"github.com/calvere/docflow/pkg/web"
	"github.com/calvere/docflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app   *fiber.App
	store *file.Persistence
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	recorder := notifier.NewRecorder()
	bus := eventbus.NewNoopEventBus()
	logger := slog.Default()

	instantiator := workflow.NewInstantiator(store, recorder, bus, logger)
	advancer := workflow.NewAdvancer(store, recorder, bus, logger)
	trigger := workflow.NewTriggerService(store, instantiator, advancer, logger)
	scheduler := workflow.NewScheduler(store, instantiator, advancer, logger)
	executor := escalation.NewExecutor(store.Steps(), store.Instances(), recorder, advancer, bus, logger)
	processor := escalation.NewProcessor(store, executor, bus, logger)
	ticker := workflow.NewTicker(lock.NewLocalLock(), scheduler, processor, logger)

	handlers := web.NewAPIHandlers(store, trigger, advancer, ticker, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return &testEnv{app: app, store: store}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (e *testEnv) seedDefinition(t *testing.T) *models.WorkflowDefinition {
	t.Helper()

	definition := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		Name:        "Invoice Approval",
		TriggerType: models.TriggerTypeDocumentUpload,
		TriggerConfig: models.TriggerConfig{
			DocumentTypes: []string{"invoice"},
		},
		Status: models.DefinitionStatusActive,
		Steps: []models.StepTemplate{
			{ID: "manager_approval", Name: "Manager Approval", Type: models.StepTypeApproval, SLAHours: 24, Assignee: "manager@example.com"},
			{ID: "finance_review", Name: "Finance Review", Type: models.StepTypeTask, Assignee: "finance@example.com"},
		},
	}
	require.NoError(t, e.store.Definitions().Save(context.Background(), definition))

	return definition
}

func TestHealthCheck(t *testing.T) {
	env := setupTestApp(t)

	resp := env.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestDocumentUploaded(t *testing.T) {
	env := setupTestApp(t)
	env.seedDefinition(t)

	resp := env.request(t, http.MethodPost, "/documents/uploaded", web.DocumentUploadedRequest{
		DocumentID:    uuid.New().String(),
		DocumentType:  "invoice",
		DocumentName:  "invoice-42.pdf",
		UserID:        "uploader@example.com",
		ExtractedData: map[string]any{"amount": 950.0},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		InstanceIDs []string `json:"instance_ids"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.InstanceIDs, 1)

	instance, err := env.store.Instances().GetByID(context.Background(), body.InstanceIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusActive, instance.Status)
}

func TestDocumentUploaded_Invalid(t *testing.T) {
	env := setupTestApp(t)

	resp := env.request(t, http.MethodPost, "/documents/uploaded", map[string]any{
		"document_type": "invoice",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompleteStep(t *testing.T) {
	env := setupTestApp(t)
	env.seedDefinition(t)

	resp := env.request(t, http.MethodPost, "/documents/uploaded", web.DocumentUploadedRequest{
		DocumentID:   uuid.New().String(),
		DocumentType: "invoice",
		DocumentName: "invoice-42.pdf",
	})

	var created struct {
		InstanceIDs []string `json:"instance_ids"`
	}
	decodeBody(t, resp, &created)
	require.Len(t, created.InstanceIDs, 1)

	steps, err := env.store.Steps().ListByInstance(context.Background(), created.InstanceIDs[0])
	require.NoError(t, err)

	resp = env.request(t, http.MethodPost, "/steps/"+steps[0].ID+"/complete", web.CompleteStepRequest{
		Decision: "approved",
		Comments: "fine",
		Actor:    "manager@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var step models.StepInstance
	decodeBody(t, resp, &step)
	assert.Equal(t, models.StepStatusCompleted, step.Status)
	assert.Equal(t, models.DecisionApproved, step.Decision)

	// Completing again conflicts.
	resp = env.request(t, http.MethodPost, "/steps/"+steps[0].ID+"/complete", web.CompleteStepRequest{
		Decision: "approved",
		Actor:    "manager@example.com",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCompleteStep_NotFound(t *testing.T) {
	env := setupTestApp(t)

	resp := env.request(t, http.MethodPost, "/steps/missing/complete", web.CompleteStepRequest{
		Decision: "approved",
		Actor:    "manager@example.com",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteStep_InvalidDecision(t *testing.T) {
	env := setupTestApp(t)

	resp := env.request(t, http.MethodPost, "/steps/some-id/complete", map[string]any{
		"decision": "maybe",
		"actor":    "manager@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunTick(t *testing.T) {
	env := setupTestApp(t)

	resp := env.request(t, http.MethodPost, "/tick", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summary workflow.TickSummary
	decodeBody(t, resp, &summary)
	assert.False(t, summary.Skipped)
	assert.NotEmpty(t, summary.TickID)
}

func TestCreateAndListDefinitions(t *testing.T) {
	env := setupTestApp(t)

	resp := env.request(t, http.MethodPost, "/definitions/", map[string]any{
		"name":         "Contract Review",
		"trigger_type": "document_upload",
		"steps": []map[string]any{
			{"id": "legal_review", "name": "Legal Review", "type": "approval", "assignee": "legal@example.com"},
		},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var definition models.WorkflowDefinition
	decodeBody(t, resp, &definition)
	assert.NotEmpty(t, definition.ID)
	assert.Equal(t, models.DefinitionStatusActive, definition.Status)

	resp = env.request(t, http.MethodGet, "/definitions/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Definitions []models.WorkflowDefinition `json:"definitions"`
		Count       int                         `json:"count"`
	}
	decodeBody(t, resp, &list)
	assert.Equal(t, 1, list.Count)

	resp = env.request(t, http.MethodGet, "/definitions/"+definition.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateDefinition_SchemaRejected(t *testing.T) {
	env := setupTestApp(t)

	resp := env.request(t, http.MethodPost, "/definitions/", map[string]any{
		"name":         "No Steps",
		"trigger_type": "document_upload",
		"steps":        []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAndListRules(t *testing.T) {
	env := setupTestApp(t)

	resp := env.request(t, http.MethodPost, "/rules/", map[string]any{
		"name":                "notify after a day",
		"is_global":           true,
		"is_active":           true,
		"trigger_after_hours": 24,
		"actions":             []map[string]any{{"type": "notify"}},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/rules/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Rules []models.EscalationRule `json:"rules"`
		Count int                     `json:"count"`
	}
	decodeBody(t, resp, &list)
	assert.Equal(t, 1, list.Count)
}

func TestCreateRule_ScopeRejected(t *testing.T) {
	env := setupTestApp(t)

	// Neither global nor bound to a workflow.
	resp := env.request(t, http.MethodPost, "/rules/", map[string]any{
		"name":                "scopeless",
		"trigger_after_hours": 24,
		"actions":             []map[string]any{{"type": "notify"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetInstanceAndSteps(t *testing.T) {
	env := setupTestApp(t)
	env.seedDefinition(t)

	resp := env.request(t, http.MethodPost, "/documents/uploaded", web.DocumentUploadedRequest{
		DocumentID:   uuid.New().String(),
		DocumentType: "invoice",
		DocumentName: "invoice-42.pdf",
	})

	var created struct {
		InstanceIDs []string `json:"instance_ids"`
	}
	decodeBody(t, resp, &created)
	require.Len(t, created.InstanceIDs, 1)

	resp = env.request(t, http.MethodGet, "/instances/"+created.InstanceIDs[0], nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/instances/"+created.InstanceIDs[0]+"/steps", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var steps struct {
		Steps []models.StepInstance `json:"steps"`
		Count int                   `json:"count"`
	}
	decodeBody(t, resp, &steps)
	assert.Equal(t, 2, steps.Count)

	resp = env.request(t, http.MethodGet, "/instances/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetStepHistory(t *testing.T) {
	env := setupTestApp(t)
	env.seedDefinition(t)

	resp := env.request(t, http.MethodPost, "/documents/uploaded", web.DocumentUploadedRequest{
		DocumentID:   uuid.New().String(),
		DocumentType: "invoice",
		DocumentName: "invoice-42.pdf",
	})

	var created struct {
		InstanceIDs []string `json:"instance_ids"`
	}
	decodeBody(t, resp, &created)
	require.Len(t, created.InstanceIDs, 1)

	steps, err := env.store.Steps().ListByInstance(context.Background(), created.InstanceIDs[0])
	require.NoError(t, err)

	require.NoError(t, env.store.History().Append(context.Background(), &models.EscalationHistory{
		ID:             uuid.New().String(),
		RuleID:         "r1",
		InstanceID:     created.InstanceIDs[0],
		StepInstanceID: steps[0].ID,
		TriggeredAt:    time.Now().UTC(),
		ActionsTaken:   []string{"notify:1"},
	}))

	resp = env.request(t, http.MethodGet, "/steps/"+steps[0].ID+"/history", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		History []models.EscalationHistory `json:"history"`
		Count   int                        `json:"count"`
	}
	decodeBody(t, resp, &history)
	assert.Equal(t, 1, history.Count)
}
