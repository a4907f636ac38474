package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// RuleRepository handles escalation rule database operations.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const ruleColumns = `
	id
  , name
  , is_global
  , workflow_id
  , is_active
  , conditions
  , actions
  , trigger_after_minutes
  , trigger_after_hours
  , repeat_every_minutes
  , repeat_every_hours
  , max_escalations
  , trigger_count
  , last_triggered_at
  , created_at
  , updated_at
`

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.EscalationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM escalation_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "rule", id, persistence.ErrRuleNotFound)
		}

		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	return rule, nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *models.EscalationRule) error {
	conditions, err := marshalJSONB(rule.Conditions, "[]")
	if err != nil {
		return err
	}

	actions, err := marshalJSONB(rule.Actions, "[]")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	query := `
		INSERT INTO escalation_rules (
			id, name, is_global, workflow_id, is_active, conditions, actions,
			trigger_after_minutes, trigger_after_hours, repeat_every_minutes,
			repeat_every_hours, max_escalations, trigger_count,
			last_triggered_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_global = EXCLUDED.is_global,
			workflow_id = EXCLUDED.workflow_id,
			is_active = EXCLUDED.is_active,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions,
			trigger_after_minutes = EXCLUDED.trigger_after_minutes,
			trigger_after_hours = EXCLUDED.trigger_after_hours,
			repeat_every_minutes = EXCLUDED.repeat_every_minutes,
			repeat_every_hours = EXCLUDED.repeat_every_hours,
			max_escalations = EXCLUDED.max_escalations,
			trigger_count = EXCLUDED.trigger_count,
			last_triggered_at = EXCLUDED.last_triggered_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.IsGlobal,
		rule.WorkflowID,
		rule.IsActive,
		conditions,
		actions,
		rule.TriggerAfterMinutes,
		rule.TriggerAfterHours,
		rule.RepeatEveryMinutes,
		rule.RepeatEveryHours,
		rule.MaxEscalations,
		rule.TriggerCount,
		rule.LastTriggeredAt,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}

	return nil
}

func (r *RuleRepository) List(ctx context.Context) ([]*models.EscalationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM escalation_rules ORDER BY created_at`

	return r.queryRules(ctx, query)
}

func (r *RuleRepository) ListActiveForWorkflow(ctx context.Context, workflowID string) ([]*models.EscalationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM escalation_rules
		WHERE is_active AND (is_global OR workflow_id = $1)
		ORDER BY created_at
	`

	return r.queryRules(ctx, query, workflowID)
}

func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]*models.EscalationRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	rules := make([]*models.EscalationRule, 0)

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

func scanRule(row rowScanner) (*models.EscalationRule, error) {
	var (
		rule            models.EscalationRule
		conditions      []byte
		actions         []byte
		lastTriggeredAt sql.NullTime
	)

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.IsGlobal,
		&rule.WorkflowID,
		&rule.IsActive,
		&conditions,
		&actions,
		&rule.TriggerAfterMinutes,
		&rule.TriggerAfterHours,
		&rule.RepeatEveryMinutes,
		&rule.RepeatEveryHours,
		&rule.MaxEscalations,
		&rule.TriggerCount,
		&lastTriggeredAt,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastTriggeredAt.Valid {
		rule.LastTriggeredAt = &lastTriggeredAt.Time
	}

	if err := unmarshalJSONB(conditions, &rule.Conditions); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(actions, &rule.Actions); err != nil {
		return nil, err
	}

	return &rule, nil
}
