// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic for workflow lifecycle events.
const Topic = "docflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowTriggeredEvent   EventType = "workflow.triggered"
	WorkflowFinishedEvent    EventType = "workflow.finished"
	WorkflowRejectedEvent    EventType = "workflow.rejected"
	WorkflowPausedEvent      EventType = "workflow.paused"
	StepCompletedEvent       EventType = "step.completed"
	EscalationTriggeredEvent EventType = "escalation.triggered"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	InstanceID string         `json:"instance_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowTriggered struct {
	BaseEvent

	WorkflowID   string `json:"workflow_id"`
	WorkflowName string `json:"workflow_name"`
	TriggerType  string `json:"trigger_type"`
	DocumentID   string `json:"document_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
	StartedBy    string `json:"started_by"`
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type StepCompleted struct {
	BaseEvent

	StepInstanceID string `json:"step_instance_id"`
	StepID         string `json:"step_id"`
	StepName       string `json:"step_name"`
	Decision       string `json:"decision,omitempty"`
	CompletedBy    string `json:"completed_by"`
}

func (s StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type EscalationTriggered struct {
	BaseEvent

	RuleID          string   `json:"rule_id"`
	RuleName        string   `json:"rule_name"`
	StepInstanceID  string   `json:"step_instance_id"`
	ActionsTaken    []string `json:"actions_taken"`
	EscalationLevel int      `json:"escalation_level"`
}

func (e EscalationTriggered) GetType() EventType {
	return EscalationTriggeredEvent
}

type WorkflowFinished struct {
	BaseEvent

	WorkflowID string        `json:"workflow_id"`
	Duration   time.Duration `json:"duration"`
}

func (w WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

type WorkflowRejected struct {
	BaseEvent

	WorkflowID     string `json:"workflow_id"`
	StepInstanceID string `json:"step_instance_id"`
	Reason         string `json:"reason,omitempty"`
	RejectedBy     string `json:"rejected_by"`
}

func (w WorkflowRejected) GetType() EventType {
	return WorkflowRejectedEvent
}

type WorkflowPaused struct {
	BaseEvent

	WorkflowID     string `json:"workflow_id"`
	StepInstanceID string `json:"step_instance_id"`
	Reason         string `json:"reason,omitempty"`
}

func (w WorkflowPaused) GetType() EventType {
	return WorkflowPausedEvent
}

func NewBaseEvent(eventType EventType, instanceID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		InstanceID: instanceID,
		Metadata:   make(map[string]any),
	}
}
