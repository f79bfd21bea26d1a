package repository

import (
	"context"

	"github.com/user/review-harvester/internal/entity"
)

// ValidationScore is the per-candidate verdict from the classifier.
// Index refers to the position in the submitted candidate slice.
type ValidationScore struct {
	Index      int     `json:"index"`
	Genuine    bool    `json:"is_genuine_review"`
	Confidence float64 `json:"confidence"`
}

// FormattedReview is the reduced form produced for forum-shaped candidates:
// a one-line title, a 1-5 rating, and a one-or-two-line summary.
type FormattedReview struct {
	Rating  float64 `json:"rating"`
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
}

// NormalizerRepository is the text-classification collaborator. Every method
// may fail; callers substitute deterministic fallbacks and never fail the
// job on a normalizer error.
type NormalizerRepository interface {
	// Validate classifies which candidates are genuine opinion content.
	Validate(ctx context.Context, product string, candidates []entity.RawCandidate) ([]ValidationScore, error)

	// Summarize produces the one-per-job aggregate summary.
	Summarize(ctx context.Context, product string, candidates []entity.RawCandidate) (*entity.HarvestSummary, error)

	// Format reduces forum-shaped candidates to title/rating/summary. Called
	// in fixed-size batches to bound prompt size.
	Format(ctx context.Context, candidates []entity.RawCandidate) ([]FormattedReview, error)
}
