package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/retry"
	"github.com/lofar-msss/obsdb/internal/status"
)

func beamStatus(b *models.Beam) status.Status {
	return status.Status{Archived: b.Archived, OnRemote: b.OnRemote, Good: b.Good}
}

// Beam loads a beam with its subband records.
func (s *Store) Beam(ctx context.Context, id int64) (status.BeamSnapshot, error) {
	b := new(models.Beam)
	err := s.db.NewSelect().
		Model(b).
		Where("b.id = ?", id).
		Relation("SubbandData").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return status.BeamSnapshot{}, fmt.Errorf("beam %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return status.BeamSnapshot{}, err
	}

	leaves := make([]status.Leaf, len(b.SubbandData))
	for i, sd := range b.SubbandData {
		leaves[i] = status.Leaf{Archived: sd.IsArchived(), OnRemote: sd.IsOnRemote()}
	}
	return status.BeamSnapshot{
		ObsID:    b.ObsID,
		FieldID:  b.FieldID,
		Current:  beamStatus(b),
		Subbands: leaves,
	}, nil
}

// ObservationBeams returns the current states of an observation's beams.
func (s *Store) ObservationBeams(ctx context.Context, obsID string) ([]status.Status, error) {
	return s.beamStates(ctx, "b.obsid = ?", obsID)
}

// FieldBeams returns the current states of the beams pointed at a field and
// the beam quota of the field's survey.
func (s *Store) FieldBeams(ctx context.Context, fieldID int64) ([]status.Status, int, error) {
	var quota int
	err := s.db.NewSelect().
		TableExpr("fields AS f").
		Join("JOIN surveys AS sv ON sv.name = f.survey_name").
		ColumnExpr("sv.beams_per_field").
		Where("f.id = ?", fieldID).
		Scan(ctx, &quota)
	if err != nil {
		return nil, 0, fmt.Errorf("quota of field %d: %w", fieldID, err)
	}

	beams, err := s.beamStates(ctx, "b.field_id = ?", fieldID)
	return beams, quota, err
}

func (s *Store) beamStates(ctx context.Context, where string, arg interface{}) ([]status.Status, error) {
	var beams []*models.Beam
	err := s.db.NewSelect().
		Model(&beams).
		Column("id", "archived", "on_remote", "good").
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]status.Status, len(beams))
	for i, b := range beams {
		out[i] = beamStatus(b)
	}
	return out, nil
}

// UpdateStatus writes the derived state of one node.
func (s *Store) UpdateStatus(ctx context.Context, n status.Node, st status.Status) error {
	return s.write(ctx, retry.OpStatus, "update "+n.String(), func(ctx context.Context) error {
		var q *bun.UpdateQuery
		switch n.Kind {
		case status.KindBeam:
			q = s.db.NewUpdate().
				Model((*models.Beam)(nil)).
				Set("good = ?", st.Good).
				Where("id = ?", n.ID)
		case status.KindObservation:
			q = s.db.NewUpdate().
				Model((*models.Observation)(nil)).
				Where("obsid = ?", n.ObsID)
		case status.KindField:
			q = s.db.NewUpdate().
				Model((*models.Field)(nil)).
				Set("done = ?", st.Done).
				Where("id = ?", n.ID)
		default:
			return fmt.Errorf("unknown node kind %v", n.Kind)
		}

		res, err := q.
			Set("archived = ?", st.Archived).
			Set("on_remote = ?", st.OnRemote).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return fmt.Errorf("%s: %w", n, ErrNotFound)
		}
		return nil
	})
}
