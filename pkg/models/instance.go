package models

import "time"

// InstanceStatus represents the lifecycle state of a workflow instance.
// Completed and rejected are terminal; paused waits for a manual resume.
type InstanceStatus string

const (
	InstanceStatusActive    InstanceStatus = "active"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusRejected  InstanceStatus = "rejected"
	InstanceStatusPaused    InstanceStatus = "paused"
)

// IsTerminal reports whether the instance can no longer advance.
func (s InstanceStatus) IsTerminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusRejected
}

// WorkflowInstance is one execution of a definition against one document.
type WorkflowInstance struct {
	ID              string         `json:"id"`
	WorkflowID      string         `json:"workflow_id"`
	Status          InstanceStatus `json:"status"`
	CurrentStepID   string         `json:"current_step_id,omitempty"`
	DocumentID      string         `json:"document_id,omitempty"`
	DocumentName    string         `json:"document_name,omitempty"`
	Priority        string         `json:"priority,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	StartedBy       string         `json:"started_by,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	EscalationCount int            `json:"escalation_count"`
}
