// Package escalation implements the overdue-step control loop: rule matching,
// re-trigger gating, action execution and the per-tick processor.
package escalation

import (
	"fmt"
	"strconv"

	"github.com/calvere/docflow/pkg/models"
)

// Facts are the observable values an escalation rule's conditions test,
// derived per step on every tick.
type Facts struct {
	StepType     models.StepType
	HoursOverdue float64
	Priority     string
	Status       models.StepStatus
}

// Matches reports whether every condition of the rule passes against the
// facts. An empty condition list matches unconditionally; the first failing
// condition short-circuits.
func Matches(rule *models.EscalationRule, facts Facts) bool {
	for _, condition := range rule.Conditions {
		if !matchCondition(condition, facts) {
			return false
		}
	}

	return true
}

func matchCondition(condition models.RuleCondition, facts Facts) bool {
	switch condition.Type {
	case models.ConditionStepType:
		return asString(condition.Value) == string(facts.StepType)
	case models.ConditionHoursOverdue:
		threshold, ok := asFloat(condition.Value)
		if !ok {
			return false
		}

		return compareHours(facts.HoursOverdue, condition.Operator, threshold)
	case models.ConditionPriority:
		return asString(condition.Value) == facts.Priority
	case models.ConditionStatus:
		return asString(condition.Value) == string(facts.Status)
	default:
		return false
	}
}

// compareHours applies the hours_overdue operator, defaulting to ">=".
func compareHours(actual float64, operator string, threshold float64) bool {
	switch operator {
	case ">":
		return actual > threshold
	case "==":
		return actual == threshold
	default:
		return actual >= threshold
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
