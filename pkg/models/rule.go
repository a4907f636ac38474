package models

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxEscalations bounds how many times a rule may fire for one step
// when the rule does not set its own limit.
const DefaultMaxEscalations = 3

// ConditionType enumerates the facts an escalation rule condition can test.
type ConditionType string

const (
	ConditionStepType     ConditionType = "step_type"
	ConditionHoursOverdue ConditionType = "hours_overdue"
	ConditionPriority     ConditionType = "priority"
	ConditionStatus       ConditionType = "status"
)

// RuleCondition is one condition of an escalation rule. All conditions of a
// rule must pass for the rule to match (logical AND). The operator applies to
// hours_overdue conditions only and defaults to ">=".
type RuleCondition struct {
	Type     ConditionType `json:"type"     validate:"required,oneof=step_type hours_overdue priority status"`
	Operator string        `json:"operator,omitempty" validate:"omitempty,oneof=>= > =="`
	Value    any           `json:"value"    validate:"required"`
}

// ActionType enumerates the closed set of escalation action kinds.
type ActionType string

const (
	ActionNotify          ActionType = "notify"
	ActionReassign        ActionType = "reassign"
	ActionEscalateManager ActionType = "escalate_manager"
	ActionAutoApprove     ActionType = "auto_approve"
	ActionAutoReject      ActionType = "auto_reject"
	ActionPauseWorkflow   ActionType = "pause_workflow"
)

// RuleAction is one ordered action of an escalation rule. Each kind reads
// only the fields it needs: notify uses Recipients, reassign uses Target,
// escalate_manager uses Manager, auto_reject uses Reason.
type RuleAction struct {
	Type       ActionType `json:"type" validate:"required,oneof=notify reassign escalate_manager auto_approve auto_reject pause_workflow"`
	Recipients []string   `json:"recipients,omitempty"`
	Target     string     `json:"target,omitempty"`
	Manager    string     `json:"manager,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

var (
	// ErrRuleScope is returned when a rule is neither global nor bound to
	// exactly one workflow.
	ErrRuleScope = errors.New("rule must be global or bound to one workflow")

	// ErrRuleThreshold is returned when a rule has no trigger threshold.
	ErrRuleThreshold = errors.New("rule requires trigger_after_minutes or trigger_after_hours")
)

// EscalationRule reacts to overdue steps: a condition list, trigger timing,
// and an ordered action list. A rule is either global or bound to exactly one
// workflow; workflow-specific rules fully override global ones.
type EscalationRule struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name" validate:"required,min=3"`
	IsGlobal            bool            `json:"is_global"`
	WorkflowID          string          `json:"workflow_id,omitempty"`
	IsActive            bool            `json:"is_active"`
	Conditions          []RuleCondition `json:"conditions"`
	Actions             []RuleAction    `json:"actions" validate:"required,min=1,dive"`
	TriggerAfterMinutes *int            `json:"trigger_after_minutes,omitempty"`
	TriggerAfterHours   int             `json:"trigger_after_hours,omitempty"`
	RepeatEveryMinutes  *int            `json:"repeat_every_minutes,omitempty"`
	RepeatEveryHours    *int            `json:"repeat_every_hours,omitempty"`
	MaxEscalations      int             `json:"max_escalations"`
	TriggerCount        int             `json:"trigger_count"`
	LastTriggeredAt     *time.Time      `json:"last_triggered_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Validate checks the rule's structural invariants.
func (r *EscalationRule) Validate() error {
	if r.IsGlobal == (r.WorkflowID != "") {
		return fmt.Errorf("%w: is_global=%t workflow_id=%q", ErrRuleScope, r.IsGlobal, r.WorkflowID)
	}

	if r.TriggerAfterMinutes == nil && r.TriggerAfterHours <= 0 {
		return ErrRuleThreshold
	}

	return nil
}

// ThresholdMinutes returns the minutes a step must have existed before this
// rule may fire. trigger_after_minutes takes precedence over hours.
func (r *EscalationRule) ThresholdMinutes() float64 {
	if r.TriggerAfterMinutes != nil {
		return float64(*r.TriggerAfterMinutes)
	}

	return float64(r.TriggerAfterHours) * 60
}

// RepeatIntervalMinutes returns the re-fire interval and whether one is set.
// A rule with no interval is one-shot: it never fires twice for a step.
func (r *EscalationRule) RepeatIntervalMinutes() (float64, bool) {
	if r.RepeatEveryMinutes != nil {
		return float64(*r.RepeatEveryMinutes), true
	}

	if r.RepeatEveryHours != nil {
		return float64(*r.RepeatEveryHours) * 60, true
	}

	return 0, false
}

// EffectiveMaxEscalations applies the default firing cap.
func (r *EscalationRule) EffectiveMaxEscalations() int {
	if r.MaxEscalations <= 0 {
		return DefaultMaxEscalations
	}

	return r.MaxEscalations
}
