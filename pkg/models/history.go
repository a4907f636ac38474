package models

import "time"

// EscalationHistory is an append-only record of one rule firing for one step.
// It is the sole source of truth for re-trigger and exhaustion checks.
type EscalationHistory struct {
	ID              string    `json:"id"`
	RuleID          string    `json:"rule_id"`
	InstanceID      string    `json:"instance_id"`
	StepInstanceID  string    `json:"step_instance_id"`
	TriggeredAt     time.Time `json:"triggered_at"`
	ActionsTaken    []string  `json:"actions_taken"`
	EscalationLevel int       `json:"escalation_level"`
}
