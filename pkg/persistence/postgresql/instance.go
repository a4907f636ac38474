package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// InstanceRepository handles workflow instance database operations.
type InstanceRepository struct {
	db *sql.DB
}

const instanceColumns = `
	id
  , workflow_id
  , status
  , current_step_id
  , document_id
  , document_name
  , priority
  , started_at
  , started_by
  , completed_at
  , metadata
  , escalation_count
`

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = $1`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "instance", id, persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	metadata, err := marshalJSONB(instance.Metadata, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_instances (
			id, workflow_id, status, current_step_id, document_id,
			document_name, priority, started_at, started_by, completed_at,
			metadata, escalation_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step_id = EXCLUDED.current_step_id,
			completed_at = EXCLUDED.completed_at,
			metadata = EXCLUDED.metadata,
			escalation_count = EXCLUDED.escalation_count
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.WorkflowID,
		string(instance.Status),
		instance.CurrentStepID,
		instance.DocumentID,
		instance.DocumentName,
		instance.Priority,
		instance.StartedAt,
		instance.StartedBy,
		instance.CompletedAt,
		metadata,
		instance.EscalationCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save instance %s: %w", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) LatestByDefinition(ctx context.Context, workflowID string) (*models.WorkflowInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan latest instance: %w", err)
	}

	return instance, nil
}

func scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	var (
		instance    models.WorkflowInstance
		completedAt sql.NullTime
		metadata    []byte
	)

	err := row.Scan(
		&instance.ID,
		&instance.WorkflowID,
		&instance.Status,
		&instance.CurrentStepID,
		&instance.DocumentID,
		&instance.DocumentName,
		&instance.Priority,
		&instance.StartedAt,
		&instance.StartedBy,
		&completedAt,
		&metadata,
		&instance.EscalationCount,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}

	if err := unmarshalJSONB(metadata, &instance.Metadata); err != nil {
		return nil, err
	}

	return &instance, nil
}
