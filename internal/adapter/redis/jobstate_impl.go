package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/repository"
)

const (
	jobStatePrefix = "harvest:job:"
	claimPrefix    = "harvest:claim:"
)

// JobStateRepoImpl keeps job states as JSON values in Redis. A state is
// written as a single SET of the full document, so polls always observe a
// complete snapshot; the key TTL provides the late-poll retention window.
type JobStateRepoImpl struct {
	client    *redis.Client
	retention time.Duration
}

// NewJobStateRepo creates a new instance of JobStateRepoImpl.
func NewJobStateRepo(client *redis.Client, retention time.Duration) *JobStateRepoImpl {
	return &JobStateRepoImpl{client: client, retention: retention}
}

var _ repository.JobStateRepository = (*JobStateRepoImpl)(nil)

// Save replaces the stored state and refreshes the retention window.
func (r *JobStateRepoImpl) Save(ctx context.Context, state *entity.JobState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal job state: %w", err)
	}
	return r.client.Set(ctx, jobStatePrefix+state.ID, payload, r.retention).Err()
}

// Find returns the stored state or ErrJobNotFound once retention expires.
func (r *JobStateRepoImpl) Find(ctx context.Context, jobID string) (*entity.JobState, error) {
	payload, err := r.client.Get(ctx, jobStatePrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrJobNotFound
		}
		return nil, err
	}

	var state entity.JobState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal job state: %w", err)
	}
	return &state, nil
}

// ClaimRequest claims fingerprint for jobID with SETNX semantics. When the
// fingerprint is already held, the holder's job id is returned instead.
func (r *JobStateRepoImpl) ClaimRequest(ctx context.Context, fingerprint, jobID string, ttl time.Duration) (string, error) {
	key := claimPrefix + fingerprint
	ok, err := r.client.SetNX(ctx, key, jobID, ttl).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}
	existing, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Holder expired between SETNX and GET; treat as claimed by us.
			return "", r.client.Set(ctx, key, jobID, ttl).Err()
		}
		return "", err
	}
	return existing, nil
}
