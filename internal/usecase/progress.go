package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/repository"
)

// progressPublisher pushes growing partial results into the job-state cell
// while a job runs. Fire-and-forget: a failed publish is logged and skipped;
// a missed poll simply observes a later, larger state.
type progressPublisher struct {
	states repository.JobStateRepository
	jobID  string

	mu        sync.Mutex
	batch     int
	lastCount int
}

func newProgressPublisher(states repository.JobStateRepository, jobID string) *progressPublisher {
	return &progressPublisher{states: states, jobID: jobID}
}

// publish emits a PROGRESS state when the cumulative candidate set grew past
// the previous publish. Batches are therefore monotonically non-decreasing
// in item count.
func (p *progressPublisher) publish(cumulative []entity.RawCandidate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(cumulative) <= p.lastCount {
		return
	}
	p.lastCount = len(cumulative)
	p.batch++

	reviews := make([]entity.NormalizedReview, 0, len(cumulative))
	for _, cand := range cumulative {
		reviews = append(reviews, partialReview(cand))
	}

	state := &entity.JobState{
		ID:    p.jobID,
		Phase: entity.PhaseProgress,
		Progress: &entity.ProgressMeta{
			Current: len(reviews),
			Total:   len(reviews),
			Batch:   p.batch,
			Status:  fmt.Sprintf("parsed %d reviews so far", len(reviews)),
			Reviews: reviews,
		},
		UpdatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.states.Save(ctx, state); err != nil {
		slog.Warn("progress publish failed", "job_id", p.jobID, "batch", p.batch, "error", err)
	}
}

// partialReview is the pre-validation projection used in PROGRESS payloads.
// Confidence stays zero until the normalizer has seen the candidate.
func partialReview(cand entity.RawCandidate) entity.NormalizedReview {
	title := cand.Title
	if title == "" {
		title = fallbackTitle(cand.Text)
	}
	return entity.NormalizedReview{
		Source:  cand.Source,
		Author:  anonymousAuthor,
		Rating:  cand.Rating,
		Title:   title,
		Summary: cand.Text,
	}
}
