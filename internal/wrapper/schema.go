package wrapper

import (
	"github.com/parcelworks/entryagent/constants"
)

// BuildSchema returns the wrapper JSON Schema as a generic map. It is passed
// to the inference backend as the `format` grammar constraint and reused
// locally to validate the response. Only the envelope is enforced; the inner
// entry-detail object is steered by the prompt skeleton.
func BuildSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"schema_id", "schema_version", "data", "meta"},
		"properties": map[string]any{
			"schema_id":      map[string]any{"type": "string", "const": constants.SchemaID},
			"schema_version": map[string]any{"type": "string", "const": constants.SchemaVersion},
			"data":           map[string]any{"type": "object"},
			"meta":           metaSchema(),
		},
		"additionalProperties": false,
	}
}

func metaSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"required": []string{
			"agent_version", "model", "generated_at", "job_id",
			"overall_confidence", "validation",
		},
		"properties": map[string]any{
			"agent_version":      map[string]any{"type": "string"},
			"model":              map[string]any{"type": "string"},
			"generated_at":       map[string]any{"type": "string"},
			"job_id":             map[string]any{"type": "string"},
			"overall_confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"field_confidence": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"path", "confidence"},
					"properties": map[string]any{
						"path":       map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					},
					"additionalProperties": false,
				},
			},
			"field_evidence": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"path", "evidence"},
					"properties": map[string]any{
						"path":     map[string]any{"type": "string"},
						"evidence": evidenceSchema(),
					},
					"additionalProperties": false,
				},
			},
			"validation": map[string]any{
				"type":     "object",
				"required": []string{"schema_ok"},
				"properties": map[string]any{
					"schema_ok":        map[string]any{"type": "boolean"},
					"missing_required": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"warnings":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"additionalProperties": false,
			},
		},
		"additionalProperties": false,
	}
}

func evidenceSchema() map[string]any {
	unit := map[string]any{"type": "number", "minimum": 0, "maximum": 1}
	return map[string]any{
		"type":     "array",
		"minItems": 0,
		"maxItems": constants.MaxEvidencePerPath,
		"items": map[string]any{
			"type":     "object",
			"required": []string{"page", "bbox"},
			"properties": map[string]any{
				"page": map[string]any{"type": "integer", "minimum": 1},
				"bbox": map[string]any{
					"type":     "object",
					"required": []string{"x", "y", "w", "h"},
					"properties": map[string]any{
						"x": unit, "y": unit, "w": unit, "h": unit,
					},
					"additionalProperties": false,
				},
			},
			"additionalProperties": false,
		},
	}
}
