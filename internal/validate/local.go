package validate

import (
	"fmt"

	"github.com/parcelworks/entryagent/internal/wrapper"
)

// Top-level fields every entry detail must carry.
var requiredTopLevel = []string{
	"entryTypeCode", "operType", "mnlFileInd", "entrdThruPortId",
	"sbmsnDate", "lines", "entryAddress", "uspsContentReviewedAcceptedFlag",
}

// ValidateEntryDetail checks the extracted data object against structural
// expectations, independent of evidence: required top-level fields, the
// two-record address collection, at least one line item, and numeric minima.
// Count and minima violations below the hard requirements are warnings only.
func ValidateEntryDetail(data map[string]any) wrapper.Validation {
	report := wrapper.Validation{SchemaOK: true}

	for _, k := range requiredTopLevel {
		v, ok := data[k]
		if !ok || v == nil || v == "" {
			report.MissingRequired = append(report.MissingRequired, k)
		}
	}

	// Exactly two counterparty addresses (sender and recipient).
	addrs, _ := data["entryAddress"].([]any)
	if len(addrs) != 2 {
		report.Warnings = append(report.Warnings, "entryAddress should contain exactly 2 records")
		if len(addrs) < 2 {
			report.MissingRequired = append(report.MissingRequired, "entryAddress[2]")
		}
	}

	lines, _ := data["lines"].([]any)
	if len(lines) < 1 {
		report.MissingRequired = append(report.MissingRequired, "lines[1]")
	}
	for i, l := range lines {
		line, _ := l.(map[string]any)
		qty, _ := line["quantity"].([]any)
		if len(qty) != 2 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("line[%d].quantity should contain exactly 2 records", i))
		}
		if totalQty, ok := line["totalQty"].(float64); ok && totalQty < 1.0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("line[%d].totalQty < 1.0 (min)", i))
		}
		if valueAmt, ok := line["valueGoodsAmt"].(float64); ok && valueAmt < 0.01 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("line[%d].valueGoodsAmt < 0.01 (min)", i))
		}
	}

	report.SchemaOK = len(report.MissingRequired) == 0
	return report
}

// MergeValidation folds the local structural verdict into the model-reported
// one. Runs before evidence-based augmentation.
func MergeValidation(dst *wrapper.Validation, local wrapper.Validation) {
	dst.SchemaOK = dst.SchemaOK && local.SchemaOK
	dst.MissingRequired = append(dst.MissingRequired, local.MissingRequired...)
	dst.Warnings = append(dst.Warnings, local.Warnings...)
}
