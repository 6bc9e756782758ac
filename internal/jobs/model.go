package jobs

import (
	"time"

	"github.com/parcelworks/entryagent/constants"
)

// Params is the immutable extraction configuration captured at job creation.
type Params struct {
	MaxPages     int     `json:"max_pages"`
	RenderScale  float64 `json:"scale"`
	Model        string  `json:"model"`
	AgentVersion string  `json:"agent_version"`
}

// Event is one entry of a job's append-only audit trail.
type Event struct {
	At      time.Time           `json:"at"`
	Status  constants.JobStatus `json:"status"`
	Message string              `json:"message"`
}

// Job is one extraction request. Records are exclusively owned by the Store;
// workers hold only the job ID and route every mutation through Store
// transitions. Values handed out by Get/List are snapshots.
type Job struct {
	ID            string              `json:"job_id"`
	Key           string              `json:"job_key"`
	Status        constants.JobStatus `json:"status"`
	Params        Params              `json:"params"`
	FilePath      string              `json:"-"`
	Filename      string              `json:"filename"`
	ContentSHA256 string              `json:"sha256"`
	Error         string              `json:"error,omitempty"`
	Cancel        bool                `json:"cancel"`
	Events        []Event             `json:"events"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// snapshot returns a copy safe to hand outside the store lock.
func (j *Job) snapshot() Job {
	cp := *j
	cp.Events = make([]Event, len(j.Events))
	copy(cp.Events, j.Events)
	return cp
}
