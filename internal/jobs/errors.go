package jobs

import (
	"fmt"

	"github.com/parcelworks/entryagent/constants"
	"github.com/parcelworks/entryagent/internal/common"
)

// NotFoundError is returned when a job ID is unknown.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job %s not found", e.JobID)
}

func (e *NotFoundError) Unwrap() error {
	return common.ErrNotFound
}

// InvalidTransitionError is returned when a status transition violates the
// state machine. Reaching it through the public API is a logic bug, not a
// business failure; it must fail loudly rather than corrupt state.
type InvalidTransitionError struct {
	JobID string
	From  constants.JobStatus
	To    constants.JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("job %s: invalid transition %s -> %s", e.JobID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return common.ErrInvalidTransition
}
