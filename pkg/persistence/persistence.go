// Package persistence provides the data storage abstraction for workflow
// definitions, instances, steps, escalation rules and history.
package persistence

import (
	"context"

	"github.com/calvere/docflow/pkg/models"
)

// DefinitionRepository reads workflow definitions. Definitions are edited
// outside the engine; the engine only increments run stats.
type DefinitionRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
	ListActiveByTrigger(ctx context.Context, trigger models.TriggerType) ([]*models.WorkflowDefinition, error)
	Save(ctx context.Context, definition *models.WorkflowDefinition) error
	IncrementRunCount(ctx context.Context, id string) error
}

// InstanceRepository stores workflow instances.
type InstanceRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	Save(ctx context.Context, instance *models.WorkflowInstance) error
	LatestByDefinition(ctx context.Context, workflowID string) (*models.WorkflowInstance, error)
}

// StepRepository stores step instances.
type StepRepository interface {
	GetByID(ctx context.Context, id string) (*models.StepInstance, error)
	Save(ctx context.Context, step *models.StepInstance) error
	ListByInstance(ctx context.Context, instanceID string) ([]*models.StepInstance, error)

	// ListActive returns all steps with status pending or in_progress,
	// the candidate set for escalation processing.
	ListActive(ctx context.Context) ([]*models.StepInstance, error)
}

// RuleRepository stores escalation rules.
type RuleRepository interface {
	GetByID(ctx context.Context, id string) (*models.EscalationRule, error)
	Save(ctx context.Context, rule *models.EscalationRule) error
	List(ctx context.Context) ([]*models.EscalationRule, error)

	// ListActiveForWorkflow returns active rules that are global or bound
	// to the given workflow.
	ListActiveForWorkflow(ctx context.Context, workflowID string) ([]*models.EscalationRule, error)
}

// HistoryRepository stores the append-only escalation history.
type HistoryRepository interface {
	Append(ctx context.Context, entry *models.EscalationHistory) error
	CountForRuleStep(ctx context.Context, ruleID, stepInstanceID string) (int, error)
	LatestForRuleStep(ctx context.Context, ruleID, stepInstanceID string) (*models.EscalationHistory, error)
	ListByStep(ctx context.Context, stepInstanceID string) ([]*models.EscalationHistory, error)
}

// DocumentRepository reads documents owned by the intake subsystem.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Save(ctx context.Context, document *models.Document) error
}

// Persistence aggregates the repositories the engine needs.
type Persistence interface {
	Definitions() DefinitionRepository
	Instances() InstanceRepository
	Steps() StepRepository
	Rules() RuleRepository
	History() HistoryRepository
	Documents() DocumentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
