// Package conditions evaluates condition-step expressions against document
// and instance data. Evaluation is pure: no side effects, no store access,
// and no errors. Unknown operators and missing fields evaluate to false.
package conditions

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operators supported by condition steps.
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorContains    = "contains"
	OperatorIn          = "in"
)

// Condition is a single field/operator/value check.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Evaluation is the audit record of one condition evaluation. It is persisted
// verbatim on the step instance, so its shape is part of the contract.
type Evaluation struct {
	Field       string    `json:"field"`
	Operator    string    `json:"operator"`
	Threshold   any       `json:"threshold"`
	ActualValue any       `json:"actual_value"`
	Result      bool      `json:"result"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	ValueFound  bool      `json:"value_found"`
}

// Evaluate checks a condition against the data bag and returns the boolean
// result plus the audit record.
func Evaluate(cond Condition, data map[string]any) (bool, Evaluation) {
	actual, found := data[cond.Field]

	eval := Evaluation{
		Field:       cond.Field,
		Operator:    cond.Operator,
		Threshold:   cond.Value,
		ActualValue: actual,
		EvaluatedAt: time.Now().UTC(),
		ValueFound:  found,
	}

	if !found {
		return false, eval
	}

	switch cond.Operator {
	case OperatorEquals:
		eval.Result = looseEquals(actual, cond.Value)
	case OperatorNotEquals:
		eval.Result = !looseEquals(actual, cond.Value)
	case OperatorGreaterThan:
		eval.Result = compareNumeric(actual, cond.Value, func(a, b float64) bool { return a > b })
	case OperatorLessThan:
		eval.Result = compareNumeric(actual, cond.Value, func(a, b float64) bool { return a < b })
	case OperatorContains:
		eval.Result = strings.Contains(
			strings.ToLower(toString(actual)),
			strings.ToLower(toString(cond.Value)),
		)
	case OperatorIn:
		eval.Result = contains(cond.Value, actual)
	default:
		// Permissive-fail: unknown operators evaluate to false.
		eval.Result = false
	}

	return eval.Result, eval
}

// BuildDataBag merges instance metadata with extracted document fields.
// Document fields win on key collisions.
func BuildDataBag(extracted, metadata map[string]any) map[string]any {
	bag := make(map[string]any, len(extracted)+len(metadata))

	for k, v := range metadata {
		bag[k] = v
	}

	for k, v := range extracted {
		bag[k] = v
	}

	return bag
}

// looseEquals compares numbers numerically and everything else as strings, so
// that JSON-decoded float64 values equal configured integers.
func looseEquals(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		return af == bf
	}

	return toString(a) == toString(b)
}

func compareNumeric(actual, threshold any, cmp func(a, b float64) bool) bool {
	af, aok := toFloat(actual)
	bf, bok := toFloat(threshold)

	if !aok || !bok {
		return false
	}

	return cmp(af, bf)
}

func contains(list, value any) bool {
	items, ok := list.([]any)
	if !ok {
		if strs, sok := list.([]string); sok {
			for _, item := range strs {
				if looseEquals(item, value) {
					return true
				}
			}
		}

		return false
	}

	for _, item := range items {
		if looseEquals(item, value) {
			return true
		}
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}
