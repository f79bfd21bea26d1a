package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/review-harvester/internal/entity"
	"github.com/user/review-harvester/internal/repository"
)

// ArchiveRepoImpl records completed harvests in the `harvest_archive` table
// owned by the external storage service. Write-only from this side.
type ArchiveRepoImpl struct {
	db *pgxpool.Pool
}

// NewArchiveRepo creates a new instance of ArchiveRepoImpl.
func NewArchiveRepo(db *pgxpool.Pool) *ArchiveRepoImpl {
	return &ArchiveRepoImpl{db: db}
}

var _ repository.ArchiveRepository = (*ArchiveRepoImpl)(nil)

// SaveResult upserts one row per completed job.
func (r *ArchiveRepoImpl) SaveResult(ctx context.Context, jobID string, result *entity.HarvestResult) error {
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	query := `
		INSERT INTO harvest_archive (job_id, product_name, source, summary, total_found, raw_count, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (job_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			total_found = EXCLUDED.total_found,
			raw_count = EXCLUDED.raw_count,
			completed_at = EXCLUDED.completed_at;
	`

	_, err = r.db.Exec(ctx, query,
		jobID,
		result.Product,
		string(result.Source),
		summaryJSON,
		result.TotalFound,
		result.RawCount,
	)
	return err
}
