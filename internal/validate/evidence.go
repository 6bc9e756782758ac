package validate

import (
	"fmt"
	"log/slog"

	"github.com/parcelworks/entryagent/internal/wrapper"
)

// DefaultCriticalPaths are the business-essential data paths checked for
// evidence support: counterparty identity, the primary line's description and
// monetary/quantity fields, and the tracking number. Overridable via config.
var DefaultCriticalPaths = []string{
	"entryAddress[0].name",
	"entryAddress[0].addressLine1",
	"entryAddress[1].name",
	"entryAddress[1].addressLine1",
	"lines[0].description",
	"lines[0].valueGoodsAmt",
	"lines[0].totalQty",
	"trackingNum",
}

// EvidenceReport summarizes one evidence pass over a wrapper.
type EvidenceReport struct {
	MissingEvidence   []string // sorted non-null leaf paths with zero evidence spans
	CriticalOmissions []string // critical paths asserted without citation
	NonNullLeaves     int
}

// MissingFraction is the share of non-null leaves lacking evidence, used by
// the confidence aggregator to size its penalty.
func (r EvidenceReport) MissingFraction() float64 {
	if r.NonNullLeaves == 0 {
		return 0
	}
	return float64(len(r.MissingEvidence)) / float64(r.NonNullLeaves)
}

// EvidenceValidator cross-checks cited evidence against the extracted data
// tree and escalates to a hard validation failure when critical fields hold
// real (non-sentinel) values with no supporting citation.
type EvidenceValidator struct {
	critical []wrapper.Path
	logger   *slog.Logger
}

// NewEvidenceValidator parses the critical path list once. Unparseable
// entries are rejected so misconfiguration surfaces at startup, not per job.
func NewEvidenceValidator(criticalPaths []string, logger *slog.Logger) (*EvidenceValidator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if criticalPaths == nil {
		criticalPaths = DefaultCriticalPaths
	}
	parsed := make([]wrapper.Path, 0, len(criticalPaths))
	for _, s := range criticalPaths {
		p, err := wrapper.ParsePath(s)
		if err != nil {
			return nil, fmt.Errorf("critical path %q: %w", s, err)
		}
		parsed = append(parsed, p)
	}
	return &EvidenceValidator{critical: parsed, logger: logger}, nil
}

// Validate mutates w in place: records missing-evidence paths under meta,
// appends warnings, and flips validation.schema_ok to false when a critical
// field lacks support. Non-critical missing evidence never fails validation.
func (v *EvidenceValidator) Validate(w *wrapper.Wrapper) EvidenceReport {
	nonNull := wrapper.NonNullLeafPaths(w.Data)
	evidenced := w.Meta.EvidencedPaths()

	missing := make([]string, 0, len(nonNull))
	missingSet := make(map[string]struct{}, len(nonNull))
	for _, p := range nonNull {
		if _, ok := evidenced[p]; !ok {
			missing = append(missing, p)
			missingSet[p] = struct{}{}
		}
	}

	report := EvidenceReport{
		MissingEvidence: missing,
		NonNullLeaves:   len(nonNull),
	}

	for _, cp := range v.critical {
		ps := cp.String()
		if _, ok := missingSet[ps]; !ok {
			continue
		}
		value, ok := wrapper.Lookup(w.Data, cp)
		if !ok || value == nil {
			continue
		}
		// A sentinel placeholder means the model found nothing; only a real
		// value asserted without citation is a hard failure.
		if IsSentinelDefault(cp.TerminalKey(), value) {
			continue
		}
		report.CriticalOmissions = append(report.CriticalOmissions, ps)
	}

	if len(report.CriticalOmissions) > 0 {
		w.Meta.Validation.SchemaOK = false
		for _, p := range report.CriticalOmissions {
			w.Meta.Validation.MissingRequired = append(w.Meta.Validation.MissingRequired,
				"missing_evidence:"+p)
		}
		w.Meta.Validation.Warnings = append(w.Meta.Validation.Warnings,
			fmt.Sprintf("%d critical field(s) asserted without evidence", len(report.CriticalOmissions)))
		v.logger.Warn("validate.evidence.critical_omissions",
			"job_id", w.Meta.JobID,
			"paths", report.CriticalOmissions,
		)
	}

	if len(missing) > 0 {
		w.Meta.MissingEvidencePaths = missing
		w.Meta.Validation.Warnings = append(w.Meta.Validation.Warnings,
			fmt.Sprintf("missing evidence for %d of %d non-null field(s)", len(missing), len(nonNull)))
	}

	return report
}
