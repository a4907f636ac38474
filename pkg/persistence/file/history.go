package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/calvere/docflow/pkg/models"
)

// HistoryRepository handles the append-only escalation history files.
type HistoryRepository struct {
	store *store
}

func (r *HistoryRepository) Append(ctx context.Context, entry *models.EscalationHistory) error {
	return r.store.write(entry.ID, entry)
}

func (r *HistoryRepository) CountForRuleStep(ctx context.Context, ruleID, stepInstanceID string) (int, error) {
	entries, err := r.list(func(entry *models.EscalationHistory) bool {
		return entry.RuleID == ruleID && entry.StepInstanceID == stepInstanceID
	})
	if err != nil {
		return 0, err
	}

	return len(entries), nil
}

func (r *HistoryRepository) LatestForRuleStep(ctx context.Context, ruleID, stepInstanceID string) (*models.EscalationHistory, error) {
	entries, err := r.list(func(entry *models.EscalationHistory) bool {
		return entry.RuleID == ruleID && entry.StepInstanceID == stepInstanceID
	})
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, nil
	}

	latest := entries[0]
	for _, entry := range entries[1:] {
		if entry.TriggeredAt.After(latest.TriggeredAt) {
			latest = entry
		}
	}

	return latest, nil
}

func (r *HistoryRepository) ListByStep(ctx context.Context, stepInstanceID string) ([]*models.EscalationHistory, error) {
	entries, err := r.list(func(entry *models.EscalationHistory) bool {
		return entry.StepInstanceID == stepInstanceID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TriggeredAt.Before(entries[j].TriggeredAt)
	})

	return entries, nil
}

func (r *HistoryRepository) list(keep func(*models.EscalationHistory) bool) ([]*models.EscalationHistory, error) {
	entries := make([]*models.EscalationHistory, 0)

	err := r.store.each(func(data []byte) error {
		var entry models.EscalationHistory
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("failed to decode history entry: %w", err)
		}

		if keep(&entry) {
			copied := entry
			entries = append(entries, &copied)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
