package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// DefinitionRepository handles workflow definition database operations.
type DefinitionRepository struct {
	db *sql.DB
}

const definitionColumns = `
	id
  , name
  , description
  , trigger_type
  , trigger_config
  , steps
  , status
  , run_count
  , owner
  , created_at
  , updated_at
`

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE id = $1`

	definition, err := scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "definition", id, persistence.ErrDefinitionNotFound)
		}

		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	return definition, nil
}

func (r *DefinitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return definitions, nil
}

func (r *DefinitionRepository) ListActiveByTrigger(ctx context.Context, trigger models.TriggerType) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE trigger_type = $1 AND status = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, string(trigger), string(models.DefinitionStatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return definitions, nil
}

func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	triggerConfig, err := marshalJSONB(definition.TriggerConfig, "{}")
	if err != nil {
		return err
	}

	steps, err := marshalJSONB(definition.Steps, "[]")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	query := `
		INSERT INTO workflow_definitions (
			id, name, description, trigger_type, trigger_config, steps,
			status, run_count, owner, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			steps = EXCLUDED.steps,
			status = EXCLUDED.status,
			run_count = EXCLUDED.run_count,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		definition.ID,
		definition.Name,
		definition.Description,
		string(definition.TriggerType),
		triggerConfig,
		steps,
		string(definition.Status),
		definition.RunCount,
		definition.Owner,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save definition %s: %w", definition.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) IncrementRunCount(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE workflow_definitions SET run_count = run_count + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment run count for %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run count update for %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("IncrementRunCount", "definition", id, persistence.ErrDefinitionNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		definition    models.WorkflowDefinition
		triggerConfig []byte
		steps         []byte
	)

	err := row.Scan(
		&definition.ID,
		&definition.Name,
		&definition.Description,
		&definition.TriggerType,
		&triggerConfig,
		&steps,
		&definition.Status,
		&definition.RunCount,
		&definition.Owner,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(triggerConfig, &definition.TriggerConfig); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(steps, &definition.Steps); err != nil {
		return nil, err
	}

	return &definition, nil
}
