package file

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// DefinitionRepository handles workflow definition file operations.
// Raw documents are schema-checked on load so a hand-edited file cannot
// inject a malformed definition into the engine.
type DefinitionRepository struct {
	store *store
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	data, err := r.store.raw(id)
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, persistence.NewStoreError("GetByID", "definition", id, persistence.ErrDefinitionNotFound)
	}

	return decodeDefinition(data)
}

func (r *DefinitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	definitions := make([]*models.WorkflowDefinition, 0)

	err := r.store.each(func(data []byte) error {
		definition, err := decodeDefinition(data)
		if err != nil {
			return err
		}

		definitions = append(definitions, definition)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return definitions, nil
}

func (r *DefinitionRepository) ListActiveByTrigger(ctx context.Context, trigger models.TriggerType) ([]*models.WorkflowDefinition, error) {
	definitions := make([]*models.WorkflowDefinition, 0)

	err := r.store.each(func(data []byte) error {
		definition, err := decodeDefinition(data)
		if err != nil {
			return err
		}

		if definition.Status == models.DefinitionStatusActive && definition.TriggerType == trigger {
			definitions = append(definitions, definition)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return definitions, nil
}

func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	definition.UpdatedAt = time.Now().UTC()

	return r.store.write(definition.ID, definition)
}

func (r *DefinitionRepository) IncrementRunCount(ctx context.Context, id string) error {
	definition, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	definition.RunCount++

	return r.Save(ctx, definition)
}

func decodeDefinition(data []byte) (*models.WorkflowDefinition, error) {
	if err := models.ValidateDefinitionJSON(data); err != nil {
		return nil, fmt.Errorf("invalid definition document: %w", err)
	}

	var definition models.WorkflowDefinition
	if err := json.Unmarshal(data, &definition); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}

	return &definition, nil
}
