package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/parcelworks/entryagent/constants"
)

// systemPrompt frames the task for the vision model. The wrapper envelope is
// additionally grammar-enforced via the `format` schema, so the prompt only
// needs to steer the inner entry-detail object.
const systemPrompt = "You are a customs entry-detail extraction agent. " +
	"You read scanned shipping documents (commercial invoices, manifests, postal entry forms) " +
	"and extract a single structured EntryDetail record. " +
	"Read values exactly as printed; never invent data."

const userGuidance = "Extraction rules:\n" +
	"- 'entryAddress' must contain exactly 2 records: the sender first, then the recipient.\n" +
	"- 'lines' must contain one record per line item with description, totalQty, valueGoodsAmt, " +
	"and a 'quantity' collection of exactly 2 records (quantity and unit of measure).\n" +
	"- Use the sentinel 'UNKNOWN' for text fields you cannot read, and '00000' for an unreadable tracking number.\n" +
	"- For every field you do report, cite where you read it: add a meta.field_evidence entry " +
	"with the page number and a normalized bounding box.\n" +
	"- Report meta.field_confidence in [0,1] for each extracted field."

// BuildPrompt assembles the full prompt for one job: task framing, extraction
// guidance, and the per-job instructions stamping the wrapper metadata.
func BuildPrompt(req Request, model string, pageCount int) string {
	now := time.Now().UTC()

	instructions := []string{
		fmt.Sprintf("You must return the wrapper object with keys schema_id='%s', schema_version='%s', data (EntryDetail), and meta (metadata).",
			constants.SchemaID, constants.SchemaVersion),
		fmt.Sprintf("Set meta.agent_version='%s', meta.model='%s', meta.generated_at='%s', meta.job_id='%s'.",
			req.AgentVersion, model, now.Format(time.RFC3339), req.JobID),
		"Set meta.validation with schema_ok=true/false and missing_required/warnings as needed.",
		fmt.Sprintf("Use today's date for fields that require it: %s.", now.Format("2006-01-02")),
		fmt.Sprintf("Document: filename=%s, page_count=%d.", req.Filename, pageCount),
	}

	return systemPrompt + "\n\n" + userGuidance + "\n\n" + strings.Join(instructions, " ")
}
