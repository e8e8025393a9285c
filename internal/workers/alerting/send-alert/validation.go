package sendalert

import "dropout-alerts/internal/common/validation"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["mode"],
	"properties": {
		"mode": {"type": "string", "enum": ["all_at_risk", "critical_only", "manual"]},
		"studentIds": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"channels": {"type": "string"},
		"title": {"type": "string", "maxLength": 200},
		"message": {"type": "string", "maxLength": 100000}
	},
	"if": {"properties": {"mode": {"const": "manual"}}},
	"then": {"required": ["studentIds"], "properties": {"studentIds": {"minItems": 1}}}
}`)
