package extract

import (
	"context"
	"time"

	"github.com/parcelworks/entryagent/internal/wrapper"
)

// Request carries everything the extraction client needs for one job.
type Request struct {
	JobID         string
	FilePath      string
	Filename      string
	ContentSHA256 string
	MaxPages      int
	RenderScale   float64
	AgentVersion  string
}

// Result is the parsed outcome of one inference call.
type Result struct {
	Wrapper    *wrapper.Wrapper
	RawJSON    []byte // the model's response text, schema-validated
	Model      string
	Done       bool
	DoneReason string
	PageCount  int
	Elapsed    time.Duration
	// RedactedRequest is the inference payload with image bytes replaced by
	// size placeholders, suitable for persisting as an audit artifact.
	RedactedRequest map[string]any
}

// Extractor is the single long-latency, fallible step of the pipeline:
// render pages, invoke the vision backend, return a validated wrapper.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
}

// PageRenderer renders document pages to base64-encoded PNG images.
type PageRenderer interface {
	RenderPages(ctx context.Context, path string, maxPages int, scale float64) ([]string, error)
	PageCount(ctx context.Context, path string) (int, error)
}
