package wrapper

import (
	"github.com/parcelworks/entryagent/constants"
)

// Wrapper is the top-level extraction result envelope returned by the vision
// model: schema identity, the extracted entry-detail object, and metadata.
// The entry-detail business schema is opaque here; Data is an untyped tree.
type Wrapper struct {
	SchemaID      string         `json:"schema_id"`
	SchemaVersion string         `json:"schema_version"`
	Data          map[string]any `json:"data"`
	Meta          Meta           `json:"meta"`
}

// Meta carries extraction metadata. It is created once per job by the
// extraction client, mutated in place by the validation/confidence pass,
// then frozen and persisted.
type Meta struct {
	AgentVersion         string            `json:"agent_version"`
	Model                string            `json:"model"`
	GeneratedAt          string            `json:"generated_at"`
	JobID                string            `json:"job_id"`
	OverallConfidence    float64           `json:"overall_confidence"`
	FieldConfidence      []FieldConfidence `json:"field_confidence,omitempty"`
	FieldEvidence        []FieldEvidence   `json:"field_evidence,omitempty"`
	Validation           Validation        `json:"validation"`
	MissingEvidencePaths []string          `json:"missing_evidence_paths,omitempty"`
}

// FieldConfidence is the model-reported confidence for one data path.
type FieldConfidence struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
}

// FieldEvidence lists the document citations supporting one data path.
type FieldEvidence struct {
	Path     string         `json:"path"`
	Evidence []EvidenceSpan `json:"evidence"`
}

// EvidenceSpan is a (page, bounding box) citation into the source document.
// Coordinates are normalized to [0,1].
type EvidenceSpan struct {
	Page int         `json:"page"`
	BBox BoundingBox `json:"bbox"`
}

type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Validation is the structural verdict carried in meta. SchemaOK false is a
// negative verdict on a successful job, not an error.
type Validation struct {
	SchemaOK        bool     `json:"schema_ok"`
	MissingRequired []string `json:"missing_required,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// EvidencedPaths returns the set of paths that carry at least one evidence span.
func (m *Meta) EvidencedPaths() map[string]struct{} {
	set := make(map[string]struct{}, len(m.FieldEvidence))
	for _, fe := range m.FieldEvidence {
		if fe.Path != "" && len(fe.Evidence) > 0 {
			set[fe.Path] = struct{}{}
		}
	}
	return set
}

// HasSchemaIdentity reports whether the envelope carries the expected
// schema_id/schema_version constants.
func (w *Wrapper) HasSchemaIdentity() bool {
	return w.SchemaID == constants.SchemaID && w.SchemaVersion == constants.SchemaVersion
}
