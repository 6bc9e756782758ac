package validate

import (
	"github.com/parcelworks/entryagent/constants"
	"github.com/parcelworks/entryagent/internal/wrapper"
)

// AggregateConfidence normalizes per-field confidence against evidence
// presence and recomputes the overall score in place.
//
// A field asserted without citation cannot be trusted at face value, so its
// reported confidence is clamped to the cap. The overall score is the mean of
// the clamped per-field confidences, reduced by a penalty proportional to the
// fraction of non-null leaves lacking evidence.
func AggregateConfidence(w *wrapper.Wrapper, report EvidenceReport) {
	evidenced := w.Meta.EvidencedPaths()

	for i := range w.Meta.FieldConfidence {
		fc := &w.Meta.FieldConfidence[i]
		if _, ok := evidenced[fc.Path]; ok {
			continue
		}
		if fc.Confidence > constants.UnevidencedConfidenceCap {
			fc.Confidence = constants.UnevidencedConfidenceCap
		}
	}

	overall := constants.DefaultOverallConfidence
	if n := len(w.Meta.FieldConfidence); n > 0 {
		var sum float64
		for _, fc := range w.Meta.FieldConfidence {
			sum += fc.Confidence
		}
		overall = sum / float64(n)
	}

	if len(report.MissingEvidence) > 0 {
		overall -= constants.MaxMissingEvidencePenalty * report.MissingFraction()
	}

	if overall < 0 {
		overall = 0
	}
	if overall > 1 {
		overall = 1
	}
	w.Meta.OverallConfidence = overall
}
