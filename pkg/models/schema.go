package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema validates raw workflow definition documents before they
// are accepted from the API or loaded from disk.
var definitionSchema = map[string]any{
	"type":     "object",
	"required": []any{"name", "trigger_type", "steps"},
	"properties": map[string]any{
		"name":        map[string]any{"type": "string", "minLength": 3},
		"description": map[string]any{"type": "string"},
		"trigger_type": map[string]any{
			"type": "string",
			"enum": []any{"schedule", "document_upload", "manual"},
		},
		"trigger_config": map[string]any{"type": "object"},
		"steps": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "name", "type"},
				"properties": map[string]any{
					"id":   map[string]any{"type": "string"},
					"name": map[string]any{"type": "string"},
					"type": map[string]any{
						"type": "string",
						"enum": []any{"approval", "task", "condition", "notification", "integration"},
					},
					"sla_hours": map[string]any{"type": "integer", "minimum": 0},
					"assignee":  map[string]any{"type": "string"},
				},
			},
		},
	},
}

// ruleSchema validates raw escalation rule documents.
var ruleSchema = map[string]any{
	"type":     "object",
	"required": []any{"name", "actions"},
	"properties": map[string]any{
		"name":      map[string]any{"type": "string", "minLength": 3},
		"is_global": map[string]any{"type": "boolean"},
		"conditions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"type", "value"},
				"properties": map[string]any{
					"type": map[string]any{
						"type": "string",
						"enum": []any{"step_type", "hours_overdue", "priority", "status"},
					},
					"operator": map[string]any{
						"type": "string",
						"enum": []any{">=", ">", "=="},
					},
				},
			},
		},
		"actions": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"type"},
				"properties": map[string]any{
					"type": map[string]any{
						"type": "string",
						"enum": []any{"notify", "reassign", "escalate_manager", "auto_approve", "auto_reject", "pause_workflow"},
					},
				},
			},
		},
		"trigger_after_minutes": map[string]any{"type": "integer", "minimum": 1},
		"trigger_after_hours":   map[string]any{"type": "integer", "minimum": 0},
		"max_escalations":       map[string]any{"type": "integer", "minimum": 1},
	},
}

// ValidateDefinitionJSON checks a raw workflow definition document against
// the definition schema.
func ValidateDefinitionJSON(raw []byte) error {
	return validateSchema(definitionSchema, raw)
}

// ValidateRuleJSON checks a raw escalation rule document against the rule
// schema.
func ValidateRuleJSON(raw []byte) error {
	return validateSchema(ruleSchema, raw)
}

func validateSchema(schema map[string]any, raw []byte) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
