package repository

import (
	"context"

	"github.com/user/review-harvester/internal/entity"
)

// ArchiveRepository records completed harvests in the external storage
// collaborator. Writes are fire-and-forget from the pipeline's point of
// view; the core never reads them back.
type ArchiveRepository interface {
	SaveResult(ctx context.Context, jobID string, result *entity.HarvestResult) error
}
