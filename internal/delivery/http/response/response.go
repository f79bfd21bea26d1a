package response

import "github.com/user/review-harvester/internal/entity"

// SubmitHarvestResponse acknowledges an accepted harvest job.
type SubmitHarvestResponse struct {
	Success         bool   `json:"success"`
	TaskID          string `json:"task_id"`
	Status          string `json:"status"`
	PollingEndpoint string `json:"polling_endpoint"`
}

// HarvestStatusResponse is a DTO for job state, mirroring entity.JobState.
type HarvestStatusResponse struct {
	TaskID    string                `json:"task_id"`
	Status    string                `json:"status"`
	Ready     bool                  `json:"ready"`
	Result    *entity.HarvestResult `json:"result,omitempty"`
	StateMeta *entity.ProgressMeta  `json:"state_meta,omitempty"`
	Error     string                `json:"error,omitempty"`
}
