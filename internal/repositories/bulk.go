package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/uptrace/bun"

	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/retry"
)

// Location places one subband record of an observation on a processing
// node.
type Location struct {
	Number   int
	Hostname string
	Path     string
	Size     int64
}

// MarkArchived records site as the archive of every subband record of the
// given observations, creating the site if needed. Unknown obsids are
// logged and skipped. It returns the ids of the affected beams.
func (s *Store) MarkArchived(ctx context.Context, obsIDs []string, site string) ([]int64, error) {
	if site == "" {
		return nil, errors.New("archive site is required")
	}
	var beamIDs []int64
	name := fmt.Sprintf("archive %d observations at %s", len(obsIDs), site)

	err := s.inTx(ctx, retry.OpBulkUpdate, name, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&models.ArchiveSite{Name: site}).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create archive site %s: %w", site, err)
		}

		known, err := knownObservations(ctx, tx, obsIDs)
		if err != nil {
			return err
		}
		present := make([]string, 0, len(known))
		for _, id := range obsIDs {
			if !known[id] {
				log.Printf("%s is not in the database", id)
				continue
			}
			present = append(present, id)
		}

		beamIDs, err = beamIDsOf(ctx, tx, present)
		if err != nil || len(beamIDs) == 0 {
			return err
		}
		_, err = tx.NewUpdate().
			Model((*models.SubbandData)(nil)).
			Set("archive_site = ?", site).
			Where("beam_id IN (?)", bun.In(beamIDs)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return beamIDs, nil
}

// SetSubbandLocations records where the subbands of an observation live on
// the processing nodes. Locations are matched by subband record number. It
// returns the ids of the affected beams.
func (s *Store) SetSubbandLocations(ctx context.Context, obsID string, locs []Location) ([]int64, error) {
	var beamIDs []int64
	name := fmt.Sprintf("locate %d subbands of %s", len(locs), obsID)

	err := s.inTx(ctx, retry.OpBulkUpdate, name, func(ctx context.Context, tx bun.Tx) error {
		ids, err := beamIDsOf(ctx, tx, []string{obsID})
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("observation %s: %w", obsID, ErrNotFound)
		}

		touched := make(map[int64]bool)
		beamIDs = beamIDs[:0]
		for _, l := range locs {
			var sd models.SubbandData
			err := tx.NewSelect().
				Model(&sd).
				Column("id", "beam_id").
				Where("sd.beam_id IN (?)", bun.In(ids)).
				Where("sd.number = ?", l.Number).
				Scan(ctx)
			if isNoRows(err) {
				log.Printf("WARNING: %s has no subband record %d", obsID, l.Number)
				continue
			}
			if err != nil {
				return fmt.Errorf("find subband %d of %s: %w", l.Number, obsID, err)
			}

			_, err = tx.NewUpdate().
				Model(&sd).
				Set("hostname = ?", l.Hostname).
				Set("path = ?", l.Path).
				Set("size = ?", l.Size).
				WherePK().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update subband %d of %s: %w", l.Number, obsID, err)
			}
			if !touched[sd.BeamID] {
				touched[sd.BeamID] = true
				beamIDs = append(beamIDs, sd.BeamID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return beamIDs, nil
}

// MarkInvalid flags an observation as invalid. Invalid observations keep
// their beams; the flag does not change any derived state. It returns the
// ids of the observation's beams.
func (s *Store) MarkInvalid(ctx context.Context, obsID string) ([]int64, error) {
	var beamIDs []int64
	err := s.inTx(ctx, retry.OpBulkUpdate, "invalidate "+obsID, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Observation)(nil)).
			Set("invalid = ?", true).
			Where("obsid = ?", obsID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return fmt.Errorf("observation %s: %w", obsID, ErrNotFound)
		}
		beamIDs, err = beamIDsOf(ctx, tx, []string{obsID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return beamIDs, nil
}
