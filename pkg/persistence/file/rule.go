package file

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// RuleRepository handles escalation rule file operations.
type RuleRepository struct {
	store *store
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.EscalationRule, error) {
	var rule models.EscalationRule

	found, err := r.store.read(id, &rule)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("GetByID", "rule", id, persistence.ErrRuleNotFound)
	}

	return &rule, nil
}

func (r *RuleRepository) Save(ctx context.Context, rule *models.EscalationRule) error {
	return r.store.write(rule.ID, rule)
}

func (r *RuleRepository) List(ctx context.Context) ([]*models.EscalationRule, error) {
	return r.list(func(*models.EscalationRule) bool { return true })
}

func (r *RuleRepository) ListActiveForWorkflow(ctx context.Context, workflowID string) ([]*models.EscalationRule, error) {
	return r.list(func(rule *models.EscalationRule) bool {
		return rule.IsActive && (rule.IsGlobal || rule.WorkflowID == workflowID)
	})
}

func (r *RuleRepository) list(keep func(*models.EscalationRule) bool) ([]*models.EscalationRule, error) {
	rules := make([]*models.EscalationRule, 0)

	err := r.store.each(func(data []byte) error {
		var rule models.EscalationRule
		if err := json.Unmarshal(data, &rule); err != nil {
			return fmt.Errorf("failed to decode rule: %w", err)
		}

		if keep(&rule) {
			copied := rule
			rules = append(rules, &copied)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rules, nil
}
