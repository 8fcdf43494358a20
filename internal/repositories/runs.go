package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/lofar-msss/obsdb/internal/ingest"
	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/retry"
)

// KnownObservations returns the subset of obsIDs already stored.
func (s *Store) KnownObservations(ctx context.Context, obsIDs []string) (map[string]bool, error) {
	return knownObservations(ctx, s.db, obsIDs)
}

// CreateRun stores the run, its observations, their beams and one subband
// record per beam subband in a single transaction. Subband records are
// numbered per observation across all of its beams. It returns the ids of
// the created beams in insertion order.
func (s *Store) CreateRun(ctx context.Context, rec *ingest.RunRecord) ([]int64, error) {
	var beamIDs []int64
	name := "create " + recordName(rec)

	err := s.inTx(ctx, retry.OpCreateRun, name, func(ctx context.Context, tx bun.Tx) error {
		beamIDs = beamIDs[:0]
		if rec.Run != nil {
			if _, err := tx.NewInsert().Model(rec.Run).Exec(ctx); err != nil {
				return fmt.Errorf("insert run %s: %w", rec.Run.ID, err)
			}
		}
		for _, o := range rec.Observations {
			ids, err := insertObservation(ctx, tx, rec.Run, o)
			if err != nil {
				return err
			}
			beamIDs = append(beamIDs, ids...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return beamIDs, nil
}

func insertObservation(ctx context.Context, tx bun.Tx, run *models.Run, o *models.Observation) ([]int64, error) {
	if run != nil {
		o.RunID = &run.ID
	}
	if _, err := tx.NewInsert().Model(o).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert observation %s: %w", o.ObsID, err)
	}

	ids := make([]int64, 0, len(o.Beams))
	n := 0
	for _, b := range o.Beams {
		b.ID = 0
		b.ObsID = o.ObsID
		if _, err := tx.NewInsert().Model(b).Exec(ctx); err != nil {
			return nil, fmt.Errorf("insert %s: %w", b, err)
		}

		rows := make([]*models.SubbandData, 0, len(b.Subbands))
		for _, sb := range b.Subbands {
			rows = append(rows, &models.SubbandData{
				ID:      models.SubbandDataID(o.ObsID, n),
				BeamID:  b.ID,
				Number:  n,
				Subband: sb,
			})
			n++
		}
		if len(rows) > 0 {
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return nil, fmt.Errorf("insert subbands of %s: %w", b, err)
			}
		}
		b.SubbandData = rows
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func recordName(rec *ingest.RunRecord) string {
	if rec.Run != nil {
		return "run " + rec.Run.ID
	}
	if len(rec.Observations) == 1 {
		return "observation " + rec.Observations[0].ObsID
	}
	return fmt.Sprintf("%d observations", len(rec.Observations))
}

// GetObservation fetches an observation with its beams and subband records.
func (s *Store) GetObservation(ctx context.Context, obsID string) (*models.Observation, error) {
	o := new(models.Observation)
	err := s.db.NewSelect().
		Model(o).
		Where("o.obsid = ?", obsID).
		Relation("Beams", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("b.number")
		}).
		Relation("Beams.SubbandData", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("sd.number")
		}).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("observation %s: %w", obsID, ErrNotFound)
	}
	return o, err
}

// ListRuns returns the runs of a survey ordered by start time.
func (s *Store) ListRuns(ctx context.Context, survey string) ([]*models.Run, error) {
	var out []*models.Run
	err := s.db.NewSelect().
		Model(&out).
		Where("r.survey_name = ?", survey).
		Order("r.start_time").
		Scan(ctx)
	return out, err
}
