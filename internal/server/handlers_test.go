package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelworks/entryagent/constants"
	"github.com/parcelworks/entryagent/internal/artifacts"
	"github.com/parcelworks/entryagent/internal/extract"
	"github.com/parcelworks/entryagent/internal/jobs"
	"github.com/parcelworks/entryagent/internal/validate"
)

// stubExtractor blocks until released, then fails. Submitted jobs stay active
// for the duration of a test, which keeps deduplication deterministic.
type stubExtractor struct {
	release chan struct{}
}

func (s *stubExtractor) Extract(ctx context.Context, _ extract.Request) (*extract.Result, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil, errors.New("stub backend")
}

type serviceFixture struct {
	svc       *JobsService
	store     *jobs.Store
	persister *artifacts.Persister
	handler   http.Handler
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	persister, err := artifacts.NewPersister(t.TempDir(), nil)
	require.NoError(t, err)
	evidence, err := validate.NewEvidenceValidator(nil, nil)
	require.NoError(t, err)

	store := jobs.NewStore(nil)
	ex := &stubExtractor{release: make(chan struct{})}
	worker := jobs.NewWorker(store, ex, persister, evidence, nil)
	dispatcher := jobs.NewDispatcher(worker, nil, jobs.WithWorkers(1))
	t.Cleanup(func() {
		close(ex.release)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		dispatcher.Shutdown(ctx)
	})

	defaults := jobs.Params{MaxPages: 2, RenderScale: 1.6, Model: "gemma3:12b", AgentVersion: "v1"}
	svc, err := NewJobsService(store, dispatcher, persister, t.TempDir(), defaults, nil)
	require.NoError(t, err)

	return &serviceFixture{svc: svc, store: store, persister: persister, handler: svc.Router()}
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *serviceFixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return rec, body
}

func (f *serviceFixture) createJob(t *testing.T, content []byte) (string, map[string]any, int) {
	t.Helper()
	buf, contentType := multipartUpload(t, "doc.pdf", content, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", buf)
	req.Header.Set("Content-Type", contentType)
	rec, body := f.do(t, req)
	id, _ := body["job_id"].(string)
	return id, body, rec.Code
}

func TestCreateJobAccepted(t *testing.T) {
	fx := newServiceFixture(t)

	id, body, code := fx.createJob(t, []byte("%PDF-1.4 fake"))
	assert.Equal(t, http.StatusAccepted, code)
	assert.NotEmpty(t, id)
	assert.Equal(t, string(constants.JobStatusQueued), body["status"])
	assert.Equal(t, false, body["deduplicated"])
}

func TestCreateJobDeduplicates(t *testing.T) {
	fx := newServiceFixture(t)
	content := []byte("%PDF-1.4 same document")

	first, _, code := fx.createJob(t, content)
	require.Equal(t, http.StatusAccepted, code)

	second, body, code := fx.createJob(t, content)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, first, second)
	assert.Equal(t, true, body["deduplicated"])
}

func TestCreateJobDifferentParamsNotDeduplicated(t *testing.T) {
	fx := newServiceFixture(t)
	content := []byte("%PDF-1.4 same document")

	first, _, code := fx.createJob(t, content)
	require.Equal(t, http.StatusAccepted, code)

	buf, contentType := multipartUpload(t, "doc.pdf", content, map[string]string{"max_pages": "5"})
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", buf)
	req.Header.Set("Content-Type", contentType)
	rec, body := fx.do(t, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEqual(t, first, body["job_id"])
}

func TestCreateJobMissingFilePart(t *testing.T) {
	fx := newServiceFixture(t)

	buf, contentType := multipartUpload(t, "", nil, map[string]string{"model": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", buf)
	req.Header.Set("Content-Type", contentType)
	rec, body := fx.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "no file part")
}

func TestCreateJobRejectsUnsupportedExtension(t *testing.T) {
	fx := newServiceFixture(t)

	buf, contentType := multipartUpload(t, "notes.txt", []byte("hi"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", buf)
	req.Header.Set("Content-Type", contentType)
	rec, body := fx.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "unsupported file type")
}

func TestCreateJobRejectsBadParams(t *testing.T) {
	fx := newServiceFixture(t)

	for field, value := range map[string]string{"max_pages": "0", "scale": "-1"} {
		buf, contentType := multipartUpload(t, "doc.pdf", []byte("x"), map[string]string{field: value})
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", buf)
		req.Header.Set("Content-Type", contentType)
		rec, _ := fx.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s=%s", field, value)
	}
}

func TestGetJob(t *testing.T) {
	fx := newServiceFixture(t)
	id, _, _ := fx.createJob(t, []byte("%PDF-1.4 doc"))

	rec, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["job_id"])
	assert.Equal(t, "doc.pdf", body["filename"])
	assert.NotContains(t, body, "schema_ok", "no verdict before the job is done")
}

func TestGetJobNotFound(t *testing.T) {
	fx := newServiceFixture(t)

	rec, _ := fx.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDoneJobIncludesVerdict(t *testing.T) {
	fx := newServiceFixture(t)

	// place a finished job directly; the HTTP layer only reads state
	job, created := fx.store.Submit("key", fx.svc.defaults, "/tmp/x.pdf", "x.pdf", "sha")
	require.True(t, created)
	require.NoError(t, fx.store.Transition(job.ID, constants.JobStatusRunning, ""))
	require.NoError(t, fx.store.Transition(job.ID, constants.JobStatusDone, ""))
	require.NoError(t, fx.persister.WriteSummary(job.ID, artifacts.Summary{
		JobID:             job.ID,
		OK:                true,
		SchemaOK:          true,
		OverallConfidence: 0.73,
	}))

	rec, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["schema_ok"])
	assert.InDelta(t, 0.73, body["overall_confidence"], 1e-9)
}

func TestListJobs(t *testing.T) {
	fx := newServiceFixture(t)
	for i := 0; i < 3; i++ {
		fx.createJob(t, []byte(fmt.Sprintf("%%PDF-1.4 doc %d", i)))
	}

	rec, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["jobs"], 3)
}

func TestCancelQueuedJob(t *testing.T) {
	fx := newServiceFixture(t)

	// not enqueued: stays queued so the cancel outcome is deterministic
	job, created := fx.store.Submit("key", fx.svc.defaults, "/tmp/x.pdf", "x.pdf", "sha")
	require.True(t, created)

	rec, body := fx.do(t, httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["canceled"])
	assert.Equal(t, string(constants.JobStatusCanceled), body["status"])
}

func TestCancelDoneJobIsConflict(t *testing.T) {
	fx := newServiceFixture(t)

	job, created := fx.store.Submit("key", fx.svc.defaults, "/tmp/x.pdf", "x.pdf", "sha")
	require.True(t, created)
	require.NoError(t, fx.store.Transition(job.ID, constants.JobStatusRunning, ""))
	require.NoError(t, fx.store.Transition(job.ID, constants.JobStatusDone, ""))

	rec, body := fx.do(t, httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["canceled"])
	assert.Equal(t, string(constants.JobStatusDone), body["status"])
}

func TestCancelUnknownJob(t *testing.T) {
	fx := newServiceFixture(t)

	rec, _ := fx.do(t, httptest.NewRequest(http.MethodPost, "/api/jobs/missing/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteJob(t *testing.T) {
	fx := newServiceFixture(t)
	job, created := fx.store.Submit("key", fx.svc.defaults, "/tmp/x.pdf", "x.pdf", "sha")
	require.True(t, created)

	rec, body := fx.do(t, httptest.NewRequest(http.MethodDelete, "/api/jobs/"+job.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["deleted"])

	rec, _ = fx.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	fx := newServiceFixture(t)

	rec, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}
