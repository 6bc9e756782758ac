package constants

// Wrapper schema identity. The inference backend is asked to emit exactly
// these values and the response validator rejects anything else.
const (
	SchemaID      = "EntryDetailExtraction"
	SchemaVersion = "1.0"
)

// DefaultAgentVersion is stamped into job params and wrapper metadata when
// the caller does not pin one.
const DefaultAgentVersion = "v1"

// Rendering defaults for PDF page images sent to the vision model.
const (
	DefaultMaxPages    = 2
	DefaultRenderScale = 1.6
	MaxEvidencePerPath = 3
)

// Confidence post-processing bounds.
const (
	// UnevidencedConfidenceCap caps per-field confidence when the field has
	// no supporting evidence span.
	UnevidencedConfidenceCap = 0.5
	// DefaultOverallConfidence is used when the model reports no per-field
	// confidences at all.
	DefaultOverallConfidence = 0.5
	// MaxMissingEvidencePenalty bounds the absolute deduction applied to the
	// overall confidence for missing evidence.
	MaxMissingEvidencePenalty = 0.15
)
