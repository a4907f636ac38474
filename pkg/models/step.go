package models

import "time"

// StepStatus represents the runtime state of a step instance.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusBlocked    StepStatus = "blocked"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
)

// Decision is the outcome recorded on completed approval-type steps.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// StepInstance is one step's runtime record within a run. A step is a
// candidate for escalation only while its status is pending or in_progress;
// completed steps are immutable.
type StepInstance struct {
	ID              string         `json:"id"`
	InstanceID      string         `json:"instance_id"`
	StepID          string         `json:"step_id"` // references the template
	Index           int            `json:"index"`   // position in template order
	Name            string         `json:"name"`
	Type            StepType       `json:"type"`
	Status          StepStatus     `json:"status"`
	Assignee        string         `json:"assignee,omitempty"`
	SLADueAt        *time.Time     `json:"sla_due_at,omitempty"`
	IsOverdue       bool           `json:"is_overdue"`
	EscalationLevel int            `json:"escalation_level"`
	Decision        Decision       `json:"decision,omitempty"`
	Comments        string         `json:"comments,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CompletedBy     string         `json:"completed_by,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// IsActive reports whether the step is still escalation-eligible.
func (s *StepInstance) IsActive() bool {
	return s.Status == StepStatusPending || s.Status == StepStatusInProgress
}

// HoursSinceCreation is the canonical overdue clock used by escalation rules:
// elapsed time since the step instance was created, in hours.
func (s *StepInstance) HoursSinceCreation(now time.Time) float64 {
	return now.Sub(s.CreatedAt).Hours()
}

// SetMetadata initializes the metadata map if needed and stores a value.
func (s *StepInstance) SetMetadata(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}

	s.Metadata[key] = value
}
