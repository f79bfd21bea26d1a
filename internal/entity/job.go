package entity

import "time"

// JobPhase is the lifecycle phase of a harvest job.
// PENDING -> STARTED -> (PROGRESS)* -> SUCCESS | FAILURE, with RETRY as a
// transient sub-state of STARTED after a recoverable fault.
type JobPhase string

const (
	PhasePending  JobPhase = "PENDING"
	PhaseStarted  JobPhase = "STARTED"
	PhaseProgress JobPhase = "PROGRESS"
	PhaseRetry    JobPhase = "RETRY"
	PhaseSuccess  JobPhase = "SUCCESS"
	PhaseFailure  JobPhase = "FAILURE"
)

// Terminal reports whether the phase is final. Terminal state is immutable.
func (p JobPhase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseFailure
}

// ProgressMeta is the partial payload attached to PROGRESS states.
// Reviews grows monotonically across publishes within one attempt.
type ProgressMeta struct {
	Current int                `json:"current"`
	Total   int                `json:"total"`
	Batch   int                `json:"batch"`
	Status  string             `json:"status"`
	Reviews []NormalizedReview `json:"reviews"`
}

// JobState is the pollable state of one harvest job. It is replaced
// wholesale on every update, never mutated in place.
type JobState struct {
	ID        string         `json:"task_id"`
	Phase     JobPhase       `json:"status"`
	Progress  *ProgressMeta  `json:"state_meta,omitempty"`
	Result    *HarvestResult `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
