package scorestudents

import "dropout-alerts/internal/common/validation"

const maxTopLimit = 100

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"refresh": {"type": "boolean"},
		"students": {"type": "array", "maxItems": 500, "items": {"type": "string", "minLength": 1}},
		"program": {"type": "string", "maxLength": 32},
		"year": {"type": "integer", "minimum": 0, "maximum": 5},
		"tier": {"type": "string", "enum": ["", "Critique", "Élevé", "Modéré", "Faible"]},
		"limit": {"type": "integer", "minimum": 0, "maximum": 100},
		"index": {"type": "boolean"}
	}
}`)
