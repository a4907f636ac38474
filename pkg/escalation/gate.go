package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/calvere/docflow/pkg/models"
	"github.com/calvere/docflow/pkg/persistence"
)

// Gate decides whether a matched rule may fire for a step right now. All of
// its decisions are re-derived from the escalation history on every call, so
// the gate itself holds no state.
type Gate struct {
	history persistence.HistoryRepository
}

func NewGate(history persistence.HistoryRepository) *Gate {
	return &Gate{history: history}
}

// ShouldFire runs the firing checks in order: exhaustion, threshold elapsed,
// first-fire, then the repeat interval. A rule without a repeat interval is
// one-shot and never fires twice for the same step.
func (g *Gate) ShouldFire(ctx context.Context, rule *models.EscalationRule, step *models.StepInstance, now time.Time) (bool, error) {
	count, err := g.history.CountForRuleStep(ctx, rule.ID, step.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count escalation history: %w", err)
	}

	if count >= rule.EffectiveMaxEscalations() {
		return false, nil
	}

	elapsedMinutes := now.Sub(step.CreatedAt).Minutes()
	if elapsedMinutes < rule.ThresholdMinutes() {
		return false, nil
	}

	last, err := g.history.LatestForRuleStep(ctx, rule.ID, step.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load latest escalation: %w", err)
	}

	if last == nil {
		return true, nil
	}

	interval, repeats := rule.RepeatIntervalMinutes()
	if !repeats {
		return false, nil
	}

	sinceLastMinutes := now.Sub(last.TriggeredAt).Minutes()

	return sinceLastMinutes >= interval, nil
}
