package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// StepRepository handles step instance file operations.
type StepRepository struct {
	store *store
}

func (r *StepRepository) GetByID(ctx context.Context, id string) (*models.StepInstance, error) {
	var step models.StepInstance

	found, err := r.store.read(id, &step)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "step", id, persistence.ErrStepNotFound)
	}

	return &step, nil
}

func (r *StepRepository) Save(ctx context.Context, step *models.StepInstance) error {
	return r.store.write(step.ID, step)
}

func (r *StepRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.StepInstance, error) {
	steps, err := r.list(func(step *models.StepInstance) bool {
		return step.InstanceID == instanceID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Index < steps[j].Index })

	return steps, nil
}

func (r *StepRepository) ListActive(ctx context.Context) ([]*models.StepInstance, error) {
	steps, err := r.list(func(step *models.StepInstance) bool {
		return step.IsActive()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].CreatedAt.Before(steps[j].CreatedAt) })

	return steps, nil
}

func (r *StepRepository) list(keep func(*models.StepInstance) bool) ([]*models.StepInstance, error) {
	steps := make([]*models.StepInstance, 0)

	err := r.store.each(func(data []byte) error {
		var step models.StepInstance
		if err := json.Unmarshal(data, &step); err != nil {
			return fmt.Errorf("failed to decode step: %w", err)
		}

		if keep(&step) {
			copied := step
			steps = append(steps, &copied)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return steps, nil
}
