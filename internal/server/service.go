package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/parcelworks/entryagent/constants"
	"github.com/parcelworks/entryagent/internal/artifacts"
	"github.com/parcelworks/entryagent/internal/common"
	"github.com/parcelworks/entryagent/internal/jobs"
)

// JobsService binds the HTTP layer to the job store, dispatcher, and
// artifact persister.
type JobsService struct {
	store      *jobs.Store
	dispatcher *jobs.Dispatcher
	persister  *artifacts.Persister
	uploadDir  string
	defaults   jobs.Params
	logger     *slog.Logger
}

func NewJobsService(store *jobs.Store, dispatcher *jobs.Dispatcher, persister *artifacts.Persister, uploadDir string, defaults jobs.Params, logger *slog.Logger) (*JobsService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &JobsService{
		store:      store,
		dispatcher: dispatcher,
		persister:  persister,
		uploadDir:  uploadDir,
		defaults:   defaults,
		logger:     logger,
	}, nil
}

// parseParams merges form overrides onto the configured defaults.
func (s *JobsService) parseParams(get func(string) string) (jobs.Params, error) {
	p := s.defaults
	if v := get("max_pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, common.NewAppError("BAD_PARAM", "max_pages must be a positive integer", common.ErrInvalidInput)
		}
		p.MaxPages = n
	}
	if v := get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return p, common.NewAppError("BAD_PARAM", "scale must be a positive number", common.ErrInvalidInput)
		}
		p.RenderScale = f
	}
	if v := get("model"); v != "" {
		p.Model = v
	}
	if v := get("agent_version"); v != "" {
		p.AgentVersion = v
	}
	return p, nil
}

// saveUpload stores the uploaded document and returns its path.
func (s *JobsService) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", common.NewAppError("BAD_UPLOAD", "missing filename", common.ErrInvalidInput)
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf", ".png", ".jpg", ".jpeg":
	default:
		return "", common.NewAppError("BAD_UPLOAD", "unsupported file type "+ext, common.ErrInvalidInput)
	}

	// Uploads are content-addressed later by hash; a UUID prefix avoids
	// clobbering between same-named files.
	dst := filepath.Join(s.uploadDir, uuid.New().String()+"-"+name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("save upload: %w", err)
	}
	return dst, nil
}

// submit hashes the stored document, deduplicates, and enqueues new work.
func (s *JobsService) submit(ctx context.Context, path, filename string, params jobs.Params) (jobs.Job, bool, error) {
	sha, err := jobs.HashFile(path)
	if err != nil {
		return jobs.Job{}, false, err
	}
	key := jobs.ComputeKey(sha, params)

	job, created := s.store.Submit(key, params, path, filename, sha)
	if !created {
		// Equivalent in-flight job; drop the duplicate upload.
		if path != job.FilePath {
			os.Remove(path)
		}
		return job, false, nil
	}

	if err := s.dispatcher.Enqueue(ctx, job.ID); err != nil {
		// From queued, only running and canceled are reachable.
		_ = s.store.Transition(job.ID, constants.JobStatusCanceled, "not scheduled: "+err.Error())
		return job, true, err
	}
	return job, true, nil
}
