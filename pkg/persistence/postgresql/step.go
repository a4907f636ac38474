package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// StepRepository handles step instance database operations.
type StepRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const stepColumns = `
	id
  , instance_id
  , step_id
  , step_index
  , name
  , type
  , status
  , assignee
  , sla_due_at
  , is_overdue
  , escalation_level
  , decision
  , comments
  , created_at
  , completed_at
  , completed_by
  , metadata
`

func (r *StepRepository) GetByID(ctx context.Context, id string) (*models.StepInstance, error) {
	query := `SELECT ` + stepColumns + ` FROM step_instances WHERE id = $1`

	step, err := scanStep(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "step", id, persistence.ErrStepNotFound)
		}

		return nil, fmt.Errorf("failed to scan step: %w", err)
	}

	return step, nil
}

func (r *StepRepository) Save(ctx context.Context, step *models.StepInstance) error {
	metadata, err := marshalJSONB(step.Metadata, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO step_instances (
			id, instance_id, step_id, step_index, name, type, status,
			assignee, sla_due_at, is_overdue, escalation_level, decision,
			comments, created_at, completed_at, completed_by, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			assignee = EXCLUDED.assignee,
			sla_due_at = EXCLUDED.sla_due_at,
			is_overdue = EXCLUDED.is_overdue,
			escalation_level = EXCLUDED.escalation_level,
			decision = EXCLUDED.decision,
			comments = EXCLUDED.comments,
			completed_at = EXCLUDED.completed_at,
			completed_by = EXCLUDED.completed_by,
			metadata = EXCLUDED.metadata
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.InstanceID,
		step.StepID,
		step.Index,
		step.Name,
		string(step.Type),
		string(step.Status),
		step.Assignee,
		step.SLADueAt,
		step.IsOverdue,
		step.EscalationLevel,
		string(step.Decision),
		step.Comments,
		step.CreatedAt,
		step.CompletedAt,
		step.CompletedBy,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to save step %s: %w", step.ID, err)
	}

	return nil
}

func (r *StepRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.StepInstance, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM step_instances
		WHERE instance_id = $1
		ORDER BY step_index
	`

	return r.querySteps(ctx, query, instanceID)
}

func (r *StepRepository) ListActive(ctx context.Context) ([]*models.StepInstance, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM step_instances
		WHERE status IN ('pending', 'in_progress')
		ORDER BY created_at
	`

	return r.querySteps(ctx, query)
}

func (r *StepRepository) querySteps(ctx context.Context, query string, args ...any) ([]*models.StepInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]*models.StepInstance, 0)

	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

func scanStep(row rowScanner) (*models.StepInstance, error) {
	var (
		step        models.StepInstance
		slaDueAt    sql.NullTime
		completedAt sql.NullTime
		metadata    []byte
	)

	err := row.Scan(
		&step.ID,
		&step.InstanceID,
		&step.StepID,
		&step.Index,
		&step.Name,
		&step.Type,
		&step.Status,
		&step.Assignee,
		&slaDueAt,
		&step.IsOverdue,
		&step.EscalationLevel,
		&step.Decision,
		&step.Comments,
		&step.CreatedAt,
		&completedAt,
		&step.CompletedBy,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	if slaDueAt.Valid {
		step.SLADueAt = &slaDueAt.Time
	}

	if completedAt.Valid {
		step.CompletedAt = &completedAt.Time
	}

	if err := unmarshalJSONB(metadata, &step.Metadata); err != nil {
		return nil, err
	}

	return &step, nil
}
