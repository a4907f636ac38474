// Package persistence provides standardized error types for store operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrInstanceNotFound indicates a workflow instance was not found.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrStepNotFound indicates a step instance was not found.
	ErrStepNotFound = errors.New("step instance not found")

	// ErrRuleNotFound indicates an escalation rule was not found.
	ErrRuleNotFound = errors.New("escalation rule not found")

	// ErrDocumentNotFound indicates a document was not found.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStepAlreadyCompleted indicates a completion attempt on an
	// already-completed step. Completed steps are immutable.
	ErrStepAlreadyCompleted = errors.New("step already completed")
)

// StoreError wraps store errors with operation context.
type StoreError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Save")
	Entity   string // Entity kind (e.g., "instance", "rule")
	EntityID string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.EntityID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, entity, entityID string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, EntityID: entityID, Err: err}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound) ||
		errors.Is(err, ErrInstanceNotFound) ||
		errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}
