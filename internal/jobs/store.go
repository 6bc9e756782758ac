package jobs

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parcelworks/entryagent/constants"
)

// allowedTransitions is the job state machine. Terminal statuses have no
// outgoing edges.
var allowedTransitions = map[constants.JobStatus][]constants.JobStatus{
	constants.JobStatusQueued: {
		constants.JobStatusRunning,
		constants.JobStatusCanceled,
	},
	constants.JobStatusRunning: {
		constants.JobStatusDone,
		constants.JobStatusFailed,
		constants.JobStatusCanceled,
		constants.JobStatusCancelRequested,
	},
	constants.JobStatusCancelRequested: {
		constants.JobStatusDone,
		constants.JobStatusCanceled,
	},
}

func transitionAllowed(from, to constants.JobStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Store is the authoritative in-memory record of every job. All mutations go
// through its methods under one mutex, which makes the dedup check-and-create
// and every per-job transition atomic.
type Store struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	byKey  map[string]string // job key -> active job id
	logger *slog.Logger

	// onDelete erases a removed job's artifact storage. Called outside the lock.
	onDelete func(jobID string)
}

type StoreOption func(*Store)

// WithDeleteHook registers the artifact-erasure callback run after a job
// record is removed.
func WithDeleteHook(fn func(jobID string)) StoreOption {
	return func(s *Store) { s.onDelete = fn }
}

func NewStore(logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		jobs:   make(map[string]*Job),
		byKey:  make(map[string]string),
		logger: logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit atomically either returns the active job already registered for key,
// or creates a new queued job. The second return reports whether a job was
// created.
func (s *Store) Submit(key string, params Params, filePath, filename, contentSHA256 string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[key]; ok {
		if existing, ok := s.jobs[id]; ok && existing.Status.IsActive() {
			s.logger.Info("store.job.deduplicated", "job_id", id, "job_key", key)
			return existing.snapshot(), false
		}
		// stale index entry from a terminal job
		delete(s.byKey, key)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:            uuid.New().String(),
		Key:           key,
		Status:        constants.JobStatusQueued,
		Params:        params,
		FilePath:      filePath,
		Filename:      filename,
		ContentSHA256: contentSHA256,
		Events: []Event{{
			At:      now,
			Status:  constants.JobStatusQueued,
			Message: "job created",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job
	s.byKey[key] = job.ID

	s.logger.Info("store.job.created", "job_id", job.ID, "job_key", key, "file", filename)
	return job.snapshot(), true
}

// Transition validates and applies a status change, appends an event, and
// refreshes updated_at. An empty message defaults to the status name.
func (s *Store) Transition(jobID string, to constants.JobStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(jobID, to, message, "")
}

// Fail transitions to failed with the captured error text.
func (s *Store) Fail(jobID string, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(jobID, constants.JobStatusFailed, "job failed: "+errText, errText)
}

func (s *Store) transitionLocked(jobID string, to constants.JobStatus, message, errText string) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return &NotFoundError{JobID: jobID}
	}
	if !transitionAllowed(job.Status, to) {
		return &InvalidTransitionError{JobID: jobID, From: job.Status, To: to}
	}

	from := job.Status
	job.Status = to
	if errText != "" {
		job.Error = errText
	}
	if message == "" {
		message = string(to)
	}
	now := time.Now().UTC()
	job.Events = append(job.Events, Event{At: now, Status: to, Message: message})
	job.UpdatedAt = now

	if to.IsTerminal() && s.byKey[job.Key] == jobID {
		delete(s.byKey, job.Key)
	}

	s.logger.Info("store.job.transition",
		"job_id", jobID, "from", from, "to", to, "message", message)
	return nil
}

// RequestCancel sets the cooperative cancel flag. A queued job is canceled
// immediately; a running job moves to cancel_requested and the worker
// resolves it at its next checkpoint. A terminal job is left completely
// untouched; the second return reports whether the cancel took effect.
func (s *Store) RequestCancel(jobID string) (constants.JobStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return "", false, &NotFoundError{JobID: jobID}
	}
	if job.Status.IsTerminal() {
		return job.Status, false, nil
	}

	job.Cancel = true
	job.UpdatedAt = time.Now().UTC()

	switch job.Status {
	case constants.JobStatusQueued:
		if err := s.transitionLocked(jobID, constants.JobStatusCanceled, "canceled while queued", ""); err != nil {
			return job.Status, false, err
		}
	case constants.JobStatusRunning:
		if err := s.transitionLocked(jobID, constants.JobStatusCancelRequested, "cancel requested", ""); err != nil {
			return job.Status, false, err
		}
	}
	return job.Status, true, nil
}

// Get returns a read-only snapshot of one job.
func (s *Store) Get(jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, &NotFoundError{JobID: jobID}
	}
	return job.snapshot(), nil
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes the job record and triggers artifact erasure.
func (s *Store) Delete(jobID string) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{JobID: jobID}
	}
	delete(s.jobs, jobID)
	if s.byKey[job.Key] == jobID {
		delete(s.byKey, job.Key)
	}
	onDelete := s.onDelete
	s.mu.Unlock()

	if onDelete != nil {
		onDelete(jobID)
	}
	s.logger.Info("store.job.deleted", "job_id", jobID)
	return nil
}
