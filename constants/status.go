package constants

// JobStatus is the canonical lifecycle status for an extraction job.
type JobStatus string

// Stable values (these exact strings appear in API responses and artifacts).
const (
	JobStatusQueued          JobStatus = "queued"           // accepted, waiting for a worker
	JobStatusRunning         JobStatus = "running"          // worker executing the extraction
	JobStatusDone            JobStatus = "done"             // terminal: result persisted
	JobStatusFailed          JobStatus = "failed"           // terminal: error captured
	JobStatusCanceled        JobStatus = "canceled"         // terminal: cancel honored
	JobStatusCancelRequested JobStatus = "cancel_requested" // cancel pending; worker resolves it
)

var terminalStatuses = map[JobStatus]struct{}{
	JobStatusDone:     {},
	JobStatusFailed:   {},
	JobStatusCanceled: {},
}

// IsTerminal reports whether no further transitions are valid from s.
func (s JobStatus) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsActive reports whether a job with status s still owns its job key for
// deduplication purposes.
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusRunning || s == JobStatusCancelRequested
}
