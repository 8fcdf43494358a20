package repositories

import (
	"context"
	"fmt"

	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/retry"
)

// StartIngest stores a new ingest execution record.
func (s *Store) StartIngest(ctx context.Context, meta *models.IngestMetadata) error {
	return s.write(ctx, retry.OpStatus, "start ingest "+meta.IngestID, func(ctx context.Context) error {
		meta.ID = 0
		_, err := s.db.NewInsert().Model(meta).Exec(ctx)
		return err
	})
}

// FinishIngest writes the outcome of an ingest execution.
func (s *Store) FinishIngest(ctx context.Context, meta *models.IngestMetadata) error {
	return s.write(ctx, retry.OpStatus, "finish ingest "+meta.IngestID, func(ctx context.Context) error {
		res, err := s.db.NewUpdate().
			Model(meta).
			Column("end_time", "status", "descriptors_loaded", "descriptors_skipped",
				"runs_accepted", "unmatched", "errors_count", "error_log").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return fmt.Errorf("ingest %s: %w", meta.IngestID, ErrNotFound)
		}
		return nil
	})
}

// GetIngest fetches an ingest execution record by its ingest id.
func (s *Store) GetIngest(ctx context.Context, ingestID string) (*models.IngestMetadata, error) {
	meta := new(models.IngestMetadata)
	err := s.db.NewSelect().
		Model(meta).
		Where("im.ingest_id = ?", ingestID).
		Scan(ctx)
	if isNoRows(err) {
		return nil, fmt.Errorf("ingest %s: %w", ingestID, ErrNotFound)
	}
	return meta, err
}
