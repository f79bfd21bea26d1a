package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/review-harvester/internal/entity"
)

var (
	// ErrJobNotFound indicates no state exists for the job id, either because
	// it was never submitted or its retention window has elapsed.
	ErrJobNotFound = errors.New("job not found")
)

// JobStateRepository stores the pollable state of harvest jobs.
// Save must replace the whole state atomically so a concurrent Find never
// observes a torn state. States are retained for a bounded window after the
// job reaches a terminal phase.
type JobStateRepository interface {
	Save(ctx context.Context, state *entity.JobState) error
	Find(ctx context.Context, jobID string) (*entity.JobState, error)

	// ClaimRequest registers a request fingerprint for submit-side duplicate
	// suppression. It returns the already-claimed job id when a matching
	// request is still in flight, or claims the fingerprint for jobID.
	ClaimRequest(ctx context.Context, fingerprint, jobID string, ttl time.Duration) (existing string, err error)
}
