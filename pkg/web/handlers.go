// Package web provides the HTTP surface of the engine: document intake,
// manual step decisions, the tick trigger and read access to runs and rules.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
	"github.com/calvere/docflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	persistence persistence.Persistence
	trigger     *workflow.TriggerService
	advancer    *workflow.Advancer
	ticker      *workflow.Ticker
	validator   *validator.Validate
}

func NewAPIHandlers(
	store persistence.Persistence,
	trigger *workflow.TriggerService,
	advancer *workflow.Advancer,
	ticker *workflow.Ticker,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: store,
		trigger:     trigger,
		advancer:    advancer,
		ticker:      ticker,
		validator:   validate,
	}
}

// RegisterRoutes mounts every endpoint on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Post("/documents/uploaded", h.DocumentUploaded)
	app.Post("/tick", h.RunTick)

	d := app.Group("/definitions")
	d.Get("/", h.ListDefinitions)
	d.Post("/", h.CreateDefinition)
	d.Get("/:id", h.GetDefinition)

	r := app.Group("/rules")
	r.Get("/", h.ListRules)
	r.Post("/", h.CreateRule)

	i := app.Group("/instances")
	i.Get("/:id", h.GetInstance)
	i.Get("/:id/steps", h.GetInstanceSteps)

	s := app.Group("/steps")
	s.Post("/:id/complete", h.CompleteStep)
	s.Get("/:id/history", h.GetStepHistory)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// DocumentUploaded starts a run for every active definition matching the
// document's type and returns the started instance IDs.
func (h *APIHandlers) DocumentUploaded(c fiber.Ctx) error {
	var req DocumentUploadedRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	started, err := h.trigger.HandleDocumentUploaded(c.Context(), models.DocumentEvent{
		DocumentID:    req.DocumentID,
		DocumentType:  req.DocumentType,
		DocumentName:  req.DocumentName,
		UserID:        req.UserID,
		ExtractedData: req.ExtractedData,
	})
	if err != nil {
		return internalError(c, err)
	}

	if started == nil {
		started = []string{}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"instance_ids": started,
	})
}

// CompleteStep records a manual decision and advances the run.
func (h *APIHandlers) CompleteStep(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Step instance ID is required")
	}

	var req CompleteStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.advancer.CompleteStep(c.Context(), id, models.Decision(req.Decision), req.Comments, req.Actor)
	if err != nil {
		return handleStoreError(c, err)
	}

	step, err := h.persistence.Steps().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(step)
}

// RunTick runs one tick synchronously and returns its summary. Intended for
// operational use and external schedulers.
func (h *APIHandlers) RunTick(c fiber.Ctx) error {
	summary := h.ticker.RunTick(c.Context())

	return c.JSON(summary)
}

func (h *APIHandlers) ListDefinitions(c fiber.Ctx) error {
	definitions, err := h.persistence.Definitions().List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"definitions": definitions,
		"count":       len(definitions),
	})
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	definition, err := h.persistence.Definitions().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(definition)
}

// CreateDefinition schema-validates the raw body before decoding, so a
// malformed definition never reaches the store.
func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	body := c.Body()

	if err := models.ValidateDefinitionJSON(body); err != nil {
		return badRequest(c, err.Error())
	}

	var definition models.WorkflowDefinition
	if err := json.Unmarshal(body, &definition); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if definition.ID == "" {
		definition.ID = uuid.New().String()
	}

	if definition.Status == "" {
		definition.Status = models.DefinitionStatusActive
	}

	definition.CreatedAt = time.Now().UTC()

	if err := h.persistence.Definitions().Save(c.Context(), &definition); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(definition)
}

func (h *APIHandlers) ListRules(c fiber.Ctx) error {
	rules, err := h.persistence.Rules().List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"rules": rules,
		"count": len(rules),
	})
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	body := c.Body()

	if err := models.ValidateRuleJSON(body); err != nil {
		return badRequest(c, err.Error())
	}

	var rule models.EscalationRule
	if err := json.Unmarshal(body, &rule); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := rule.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	rule.CreatedAt = time.Now().UTC()

	if err := h.persistence.Rules().Save(c.Context(), &rule); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.persistence.Instances().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) GetInstanceSteps(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	if _, err := h.persistence.Instances().GetByID(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	steps, err := h.persistence.Steps().ListByInstance(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"steps": steps,
		"count": len(steps),
	})
}

func (h *APIHandlers) GetStepHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Step instance ID is required")
	}

	if _, err := h.persistence.Steps().GetByID(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	history, err := h.persistence.History().ListByStep(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"history": history,
		"count":   len(history),
	})
}
