// Package models defines the core domain models for document workflow automation.
package models

import "time"

// DefinitionStatus represents the lifecycle state of a workflow definition.
type DefinitionStatus string

const (
	DefinitionStatusActive   DefinitionStatus = "active"
	DefinitionStatusInactive DefinitionStatus = "inactive"
)

// TriggerType identifies how a workflow definition starts new runs.
type TriggerType string

const (
	TriggerTypeSchedule       TriggerType = "schedule"
	TriggerTypeDocumentUpload TriggerType = "document_upload"
	TriggerTypeManual         TriggerType = "manual"
)

// StepType identifies what kind of work a step template describes.
// Condition and notification steps are automatic; the rest wait for a human.
type StepType string

const (
	StepTypeApproval     StepType = "approval"
	StepTypeTask         StepType = "task"
	StepTypeCondition    StepType = "condition"
	StepTypeNotification StepType = "notification"
	StepTypeIntegration  StepType = "integration"
)

// IsAutomatic reports whether steps of this type are resolved by the engine
// without human action.
func (t StepType) IsAutomatic() bool {
	return t == StepTypeCondition || t == StepTypeNotification
}

// TriggerConfig carries the trigger-type specific configuration of a
// definition: a schedule spec for schedule triggers, accepted document types
// for document_upload triggers.
type TriggerConfig struct {
	Schedule      *ScheduleSpec `json:"schedule,omitempty"`
	DocumentTypes []string      `json:"document_types,omitempty"`
}

// StepTemplate describes one ordered step of a workflow definition.
type StepTemplate struct {
	ID       string         `json:"id"         validate:"required"`
	Name     string         `json:"name"       validate:"required"`
	Type     StepType       `json:"type"       validate:"required,oneof=approval task condition notification integration"`
	Config   map[string]any `json:"config,omitempty"`
	SLAHours int            `json:"sla_hours"  validate:"gte=0"`
	Assignee string         `json:"assignee,omitempty"`
	CC       []string       `json:"cc,omitempty"`
}

// WorkflowDefinition is the template describing ordered steps and a start
// trigger. Definitions are created and edited outside the engine; the engine
// only reads them and increments RunCount.
type WorkflowDefinition struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"        validate:"required,min=3"`
	Description   string           `json:"description"`
	TriggerType   TriggerType      `json:"trigger_type" validate:"required,oneof=schedule document_upload manual"`
	TriggerConfig TriggerConfig    `json:"trigger_config"`
	Steps         []StepTemplate   `json:"steps"       validate:"required,min=1,dive"`
	Status        DefinitionStatus `json:"status"`
	RunCount      int              `json:"run_count"`
	Owner         string           `json:"owner,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// StepByID returns the step template with the given ID and its position in
// template order.
func (d *WorkflowDefinition) StepByID(id string) (StepTemplate, int, bool) {
	for i, step := range d.Steps {
		if step.ID == id {
			return step, i, true
		}
	}

	return StepTemplate{}, -1, false
}
