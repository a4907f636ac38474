package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/calvere/docflow/pkg/models"
)

// HistoryRepository handles the append-only escalation history table.
type HistoryRepository struct {
	db *sql.DB
}

const historyColumns = `
	id
  , rule_id
  , instance_id
  , step_instance_id
  , triggered_at
  , actions_taken
  , escalation_level
`

func (r *HistoryRepository) Append(ctx context.Context, entry *models.EscalationHistory) error {
	actionsTaken, err := marshalJSONB(entry.ActionsTaken, "[]")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO escalation_history (
			id, rule_id, instance_id, step_instance_id, triggered_at,
			actions_taken, escalation_level
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.RuleID,
		entry.InstanceID,
		entry.StepInstanceID,
		entry.TriggeredAt,
		actionsTaken,
		entry.EscalationLevel,
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry %s: %w", entry.ID, err)
	}

	return nil
}

func (r *HistoryRepository) CountForRuleStep(ctx context.Context, ruleID, stepInstanceID string) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM escalation_history WHERE rule_id = $1 AND step_instance_id = $2`,
		ruleID, stepInstanceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history for rule %s step %s: %w", ruleID, stepInstanceID, err)
	}

	return count, nil
}

func (r *HistoryRepository) LatestForRuleStep(ctx context.Context, ruleID, stepInstanceID string) (*models.EscalationHistory, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM escalation_history
		WHERE rule_id = $1 AND step_instance_id = $2
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	entry, err := scanHistory(r.db.QueryRowContext(ctx, query, ruleID, stepInstanceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	return entry, nil
}

func (r *HistoryRepository) ListByStep(ctx context.Context, stepInstanceID string) ([]*models.EscalationHistory, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM escalation_history
		WHERE step_instance_id = $1
		ORDER BY triggered_at
	`

	rows, err := r.db.QueryContext(ctx, query, stepInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.EscalationHistory, 0)

	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}

func scanHistory(row rowScanner) (*models.EscalationHistory, error) {
	var (
		entry        models.EscalationHistory
		actionsTaken []byte
	)

	err := row.Scan(
		&entry.ID,
		&entry.RuleID,
		&entry.InstanceID,
		&entry.StepInstanceID,
		&entry.TriggeredAt,
		&actionsTaken,
		&entry.EscalationLevel,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(actionsTaken, &entry.ActionsTaken); err != nil {
		return nil, err
	}

	return &entry, nil
}
