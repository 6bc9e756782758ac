package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parcelworks/entryagent/constants"
	"github.com/parcelworks/entryagent/internal/artifacts"
	"github.com/parcelworks/entryagent/internal/extract"
	"github.com/parcelworks/entryagent/internal/validate"
	"github.com/parcelworks/entryagent/internal/wrapper"
)

// Worker executes the extraction pipeline for one claimed job: run the
// inference call, cross-check evidence, aggregate confidence, persist
// artifacts, and finalize the job status. Errors never escape Run; every
// failure ends as a terminal job record.
type Worker struct {
	store     *Store
	extractor extract.Extractor
	persister *artifacts.Persister
	evidence  *validate.EvidenceValidator
	logger    *slog.Logger
}

func NewWorker(store *Store, extractor extract.Extractor, persister *artifacts.Persister, evidence *validate.EvidenceValidator, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:     store,
		extractor: extractor,
		persister: persister,
		evidence:  evidence,
		logger:    logger,
	}
}

// Run drives one job from queued to a terminal state.
func (w *Worker) Run(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker.panic", "job_id", jobID, "panic", r)
			_ = w.store.Fail(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := w.store.Transition(jobID, constants.JobStatusRunning, "job started"); err != nil {
		// A job canceled while queued is already terminal; nothing to do.
		var invalid *InvalidTransitionError
		if errors.As(err, &invalid) {
			w.logger.Info("worker.skip", "job_id", jobID, "status", invalid.From)
			return
		}
		w.logger.Error("worker.claim_failed", "job_id", jobID, "error", err)
		return
	}

	job, err := w.store.Get(jobID)
	if err != nil {
		w.logger.Error("worker.get_failed", "job_id", jobID, "error", err)
		return
	}

	// Cheap checkpoint before the expensive call.
	if job.Cancel {
		_ = w.store.Transition(jobID, constants.JobStatusCanceled, "canceled before extraction")
		return
	}

	res, err := w.extractor.Extract(ctx, extract.Request{
		JobID:         job.ID,
		FilePath:      job.FilePath,
		Filename:      job.Filename,
		ContentSHA256: job.ContentSHA256,
		MaxPages:      job.Params.MaxPages,
		RenderScale:   job.Params.RenderScale,
		AgentVersion:  job.Params.AgentVersion,
	})
	if err != nil {
		w.finalizeFailure(jobID, err)
		return
	}

	local := w.postProcess(res)

	if err := w.persist(job, res, local); err != nil {
		w.finalizeFailure(jobID, err)
		return
	}

	// Cancel observed after the call still finalizes as canceled, but the
	// computed artifacts are kept for audit.
	final := constants.JobStatusDone
	message := "extraction complete"
	if cur, err := w.store.Get(jobID); err == nil && cur.Cancel {
		final = constants.JobStatusCanceled
		message = "canceled after extraction; artifacts kept"
	}
	if err := w.store.Transition(jobID, final, message); err != nil {
		w.logger.Error("worker.finalize_failed", "job_id", jobID, "error", err)
		return
	}

	w.logger.Info("worker.finished",
		"job_id", jobID,
		"status", final,
		"schema_ok", res.Wrapper.Meta.Validation.SchemaOK,
		"overall_confidence", res.Wrapper.Meta.OverallConfidence,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
}

// postProcess runs the single validation/confidence pass over the wrapper:
// local structure first, then evidence cross-check (which may hard-fail
// critical fields), then confidence aggregation using the evidence report.
func (w *Worker) postProcess(res *extract.Result) wrapper.Validation {
	local := validate.ValidateEntryDetail(res.Wrapper.Data)
	validate.MergeValidation(&res.Wrapper.Meta.Validation, local)

	report := w.evidence.Validate(res.Wrapper)
	validate.AggregateConfidence(res.Wrapper, report)
	return local
}

func (w *Worker) persist(job Job, res *extract.Result, local wrapper.Validation) error {
	id := job.ID
	if err := w.persister.WriteDocMeta(id, artifacts.DocMeta{
		Filename:  job.Filename,
		SHA256:    job.ContentSHA256,
		PageCount: res.PageCount,
	}); err != nil {
		return err
	}
	if err := w.persister.WriteRequest(id, res.RedactedRequest); err != nil {
		return err
	}
	if err := w.persister.WriteRawResponse(id, res.RawJSON); err != nil {
		return err
	}
	if err := w.persister.WriteWrapper(id, res.Wrapper); err != nil {
		return err
	}
	return w.persister.WriteSummary(id, artifacts.Summary{
		JobID:             id,
		OK:                true,
		Model:             res.Model,
		Done:              res.Done,
		DoneReason:        res.DoneReason,
		ElapsedSec:        res.Elapsed.Seconds(),
		SchemaOK:          res.Wrapper.Meta.Validation.SchemaOK,
		OverallConfidence: res.Wrapper.Meta.OverallConfidence,
		LocalValidation:   &local,
	})
}

// finalizeFailure records a pipeline error as a terminal status. If a cancel
// raced with the failure, cancellation wins: the state machine has no
// failed edge out of cancel_requested.
func (w *Worker) finalizeFailure(jobID string, cause error) {
	w.logger.Error("worker.pipeline_failed", "job_id", jobID, "error", cause)

	if job, err := w.store.Get(jobID); err == nil && job.Cancel {
		_ = w.store.Transition(jobID, constants.JobStatusCanceled,
			"canceled during extraction: "+cause.Error())
		_ = w.persister.WriteSummary(jobID, artifacts.Summary{
			JobID: jobID,
			OK:    false,
			Error: cause.Error(),
		})
		return
	}

	if err := w.store.Fail(jobID, cause.Error()); err != nil {
		w.logger.Error("worker.fail_transition_failed", "job_id", jobID, "error", err)
		return
	}
	_ = w.persister.WriteSummary(jobID, artifacts.Summary{
		JobID: jobID,
		OK:    false,
		Error: cause.Error(),
	})
}
