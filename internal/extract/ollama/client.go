package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parcelworks/entryagent/internal/extract"
	"github.com/parcelworks/entryagent/internal/wrapper"
)

// generateResponse is the native /api/generate response envelope.
type generateResponse struct {
	Response   string `json:"response"`
	Model      string `json:"model"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

// Extract implements extract.Extractor against the Ollama native API:
// render pages, POST prompt + images + wrapper grammar, then schema-validate
// and decode the structured response.
func (c *Client) Extract(ctx context.Context, req extract.Request) (*extract.Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("extract.start",
		"req_id", rid,
		"job_id", req.JobID,
		"model", c.cfg.Model,
		"file", req.Filename,
		"max_pages", req.MaxPages,
		"scale", req.RenderScale,
	)

	pageCount, err := c.renderer.PageCount(ctx, req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("probe page count: %w", err)
	}

	images, err := c.renderer.RenderPages(ctx, req.FilePath, req.MaxPages, req.RenderScale)
	if err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no pages rendered from %s", req.Filename)
	}

	prompt := extract.BuildPrompt(req, c.cfg.Model, pageCount)
	format := wrapper.BuildSchema()

	payload := map[string]any{
		"model":   c.cfg.Model,
		"prompt":  prompt,
		"images":  images,
		"format":  format,
		"stream":  false,
		"options": map[string]any{"temperature": c.cfg.Temperature},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/generate"
	raw, status, httpErr := extract.SendJSON(ctx, c.http, endpoint, payload, c.logger)
	if httpErr != nil {
		c.logger.Error("extract.http_error",
			"req_id", rid, "job_id", req.JobID, "status", status, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("generate call: %w", httpErr)
	}

	var gen generateResponse
	if err := json.Unmarshal(raw, &gen); err != nil {
		c.logger.Error("extract.decode_error",
			"req_id", rid, "job_id", req.JobID, "error", err, "raw_bytes", len(raw),
		)
		return nil, fmt.Errorf("decode generate response: %w", err)
	}

	body := []byte(strings.TrimSpace(gen.Response))
	if err := wrapper.ValidateResponse(body); err != nil {
		c.logger.Error("extract.schema_validation_failed",
			"req_id", rid, "job_id", req.JobID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("wrapper schema validation: %w", err)
	}

	var w wrapper.Wrapper
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("unmarshal wrapper: %w", err)
	}

	// The backend is the authority on which model actually ran, and this
	// process is the authority on job identity; never trust the model's echo.
	w.Meta.JobID = req.JobID
	w.Meta.AgentVersion = req.AgentVersion
	if gen.Model != "" {
		w.Meta.Model = gen.Model
	}

	c.logger.Info("extract.ok",
		"req_id", rid,
		"job_id", req.JobID,
		"model", gen.Model,
		"done", gen.Done,
		"done_reason", gen.DoneReason,
		"pages", len(images),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &extract.Result{
		Wrapper:         &w,
		RawJSON:         body,
		Model:           gen.Model,
		Done:            gen.Done,
		DoneReason:      gen.DoneReason,
		PageCount:       pageCount,
		Elapsed:         time.Since(start),
		RedactedRequest: redactImages(payload, images),
	}, nil
}

// redactImages replaces raw base64 image payloads with size placeholders so
// the request can be persisted without megabytes of pixels.
func redactImages(payload map[string]any, images []string) map[string]any {
	redacted := make(map[string]any, len(payload))
	for k, v := range payload {
		redacted[k] = v
	}
	placeholders := make([]string, len(images))
	for i, img := range images {
		placeholders[i] = fmt.Sprintf("<base64 %d chars>", len(img))
	}
	redacted["images"] = placeholders
	return redacted
}
