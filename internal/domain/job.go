package domain

import (
	"encoding/json"
	"time"
)

// JobState enumerates the job lifecycle. Queued is the only initial state;
// every other state is terminal except Running.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions may leave the state.
func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// JobResult is the payload of a completed job: base64-encoded images plus the
// upstream's opaque generation info.
type JobResult struct {
	Images []string        `json:"images"`
	Info   json.RawMessage `json:"info,omitempty"`
}

// JobFailure is the error detail of a failed job.
type JobFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Job tracks one submitted specification through its lifecycle. The JobStore
// owns every Job; all other components work on clones.
type Job struct {
	ID          string          `json:"job_id"`
	UserID      string          `json:"user_id"`
	Spec        *GenerationSpec `json:"spec"`
	State       JobState        `json:"state"`
	Progress    float64         `json:"progress"`
	Result      *JobResult      `json:"result,omitempty"`
	Failure     *JobFailure     `json:"failure,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a copy deep enough that readers never observe later mutation
// of the stored record.
func (j *Job) Clone() *Job {
	out := *j
	if j.Spec != nil {
		out.Spec = j.Spec.Clone()
	}
	if j.Result != nil {
		r := *j.Result
		if j.Result.Images != nil {
			r.Images = append([]string(nil), j.Result.Images...)
		}
		out.Result = &r
	}
	if j.Failure != nil {
		f := *j.Failure
		out.Failure = &f
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
