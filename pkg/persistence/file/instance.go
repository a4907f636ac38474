package file

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// InstanceRepository handles workflow instance file operations.
type InstanceRepository struct {
	store *store
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance

	found, err := r.store.read(id, &instance)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "instance", id, persistence.ErrInstanceNotFound)
	}

	return &instance, nil
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	return r.store.write(instance.ID, instance)
}

func (r *InstanceRepository) LatestByDefinition(ctx context.Context, workflowID string) (*models.WorkflowInstance, error) {
	var latest *models.WorkflowInstance

	err := r.store.each(func(data []byte) error {
		var instance models.WorkflowInstance
		if err := json.Unmarshal(data, &instance); err != nil {
			return fmt.Errorf("failed to decode instance: %w", err)
		}

		if instance.WorkflowID != workflowID {
			return nil
		}

		if latest == nil || instance.StartedAt.After(latest.StartedAt) {
			copied := instance
			latest = &copied
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return latest, nil
}
