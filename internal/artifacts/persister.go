package artifacts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parcelworks/entryagent/internal/wrapper"
)

// Artifact filenames within a job directory.
const (
	WrapperFile     = "result.wrapper.json"
	SummaryFile     = "summary.json"
	RequestFile     = "request.json"
	DocMetaFile     = "doc_meta.json"
	RawResponseFile = "raw_response.json"
)

// Summary is everything about a finished job except the wrapper body:
// timing, model identity, and the local validation verdict.
type Summary struct {
	JobID             string              `json:"job_id"`
	OK                bool                `json:"ok"`
	Error             string              `json:"error,omitempty"`
	Model             string              `json:"model,omitempty"`
	Done              bool                `json:"done"`
	DoneReason        string              `json:"done_reason,omitempty"`
	ElapsedSec        float64             `json:"elapsed_sec"`
	SchemaOK          bool                `json:"schema_ok"`
	OverallConfidence float64             `json:"overall_confidence"`
	LocalValidation   *wrapper.Validation `json:"local_validation,omitempty"`
}

// DocMeta identifies the source document.
type DocMeta struct {
	Filename  string `json:"filename"`
	SHA256    string `json:"sha256"`
	PageCount int    `json:"page_count"`
}

// Persister durably writes per-job artifacts under root/<job_id>/.
// Each job directory is exclusively owned by that job's worker.
type Persister struct {
	root   string
	logger *slog.Logger
}

func NewPersister(root string, logger *slog.Logger) (*Persister, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Persister{root: root, logger: logger}, nil
}

func (p *Persister) WriteWrapper(jobID string, w *wrapper.Wrapper) error {
	return p.writeJSON(jobID, WrapperFile, w)
}

func (p *Persister) WriteSummary(jobID string, s Summary) error {
	return p.writeJSON(jobID, SummaryFile, s)
}

func (p *Persister) WriteRequest(jobID string, payload map[string]any) error {
	return p.writeJSON(jobID, RequestFile, payload)
}

func (p *Persister) WriteDocMeta(jobID string, m DocMeta) error {
	return p.writeJSON(jobID, DocMetaFile, m)
}

// WriteRawResponse stores the model's response text verbatim, before any
// decode or post-processing touched it.
func (p *Persister) WriteRawResponse(jobID string, raw []byte) error {
	dir := filepath.Join(p.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, RawResponseFile), raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", RawResponseFile, err)
	}
	return nil
}

// ReadSummary loads the summary for a finished job. Callers treat a missing
// file as "no artifact yet".
func (p *Persister) ReadSummary(jobID string) (*Summary, error) {
	b, err := os.ReadFile(filepath.Join(p.root, jobID, SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &s, nil
}

// ReadWrapper loads the persisted wrapper for a finished job.
func (p *Persister) ReadWrapper(jobID string) (*wrapper.Wrapper, error) {
	b, err := os.ReadFile(filepath.Join(p.root, jobID, WrapperFile))
	if err != nil {
		return nil, fmt.Errorf("read wrapper: %w", err)
	}
	var w wrapper.Wrapper
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode wrapper: %w", err)
	}
	return &w, nil
}

// Delete removes the job's artifact directory.
func (p *Persister) Delete(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("delete artifacts: empty job id")
	}
	dir := filepath.Join(p.root, jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	p.logger.Info("artifacts.deleted", "job_id", jobID)
	return nil
}

func (p *Persister) writeJSON(jobID, name string, v any) error {
	dir := filepath.Join(p.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
