package repositories

import (
	"context"
	"fmt"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
	"github.com/uptrace/bun"

	"github.com/lofar-msss/obsdb/internal/catalog"
	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/retry"
	"github.com/lofar-msss/obsdb/internal/status"
)

// CreateSurvey stores a survey, or returns the existing one with the same
// name unchanged.
func (s *Store) CreateSurvey(ctx context.Context, sv *models.Survey) (*models.Survey, error) {
	err := s.write(ctx, retry.OpBulkUpdate, "create survey "+sv.Name, func(ctx context.Context) error {
		_, err := s.db.NewInsert().
			Model(sv).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create survey %s: %w", sv.Name, err)
	}
	return s.GetSurvey(ctx, sv.Name)
}

// GetSurvey fetches a survey by name.
func (s *Store) GetSurvey(ctx context.Context, name string) (*models.Survey, error) {
	sv := new(models.Survey)
	err := s.db.NewSelect().
		Model(sv).
		Where("sv.name = ?", name).
		Scan(ctx)
	if isNoRows(err) {
		return nil, fmt.Errorf("survey %s: %w", name, ErrNotFound)
	}
	return sv, err
}

// InsertFields stores catalog entries as fields of their surveys in one
// transaction. Entries are validated first; IDs are written back into
// entries.
func (s *Store) InsertFields(ctx context.Context, entries []catalog.Entry) error {
	fields := make([]*models.Field, len(entries))
	for i, e := range entries {
		f := &models.Field{
			Name:        e.Name,
			SurveyName:  e.Survey,
			Description: e.Description,
			RA:          e.Position.Lon.Rad(),
			Dec:         e.Position.Lat.Rad(),
			Calibrator:  e.Calibrator,
			Archived:    models.StateNone,
			OnRemote:    models.StateNone,
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("field %s: %w", e.Name, err)
		}
		fields[i] = f
	}
	if len(fields) == 0 {
		return nil
	}

	name := fmt.Sprintf("insert %d fields", len(fields))
	err := s.inTx(ctx, retry.OpBulkUpdate, name, func(ctx context.Context, tx bun.Tx) error {
		for _, f := range fields {
			f.ID = 0
			if _, err := tx.NewInsert().Model(f).Exec(ctx); err != nil {
				return fmt.Errorf("insert field %s: %w", f.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, f := range fields {
		entries[i].ID = f.ID
	}
	return nil
}

// InsertStations stores stations, replacing rows with the same name.
func (s *Store) InsertStations(ctx context.Context, stations []*models.Station) error {
	if len(stations) == 0 {
		return nil
	}
	name := fmt.Sprintf("insert %d stations", len(stations))
	return s.write(ctx, retry.OpBulkUpdate, name, func(ctx context.Context) error {
		_, err := s.db.NewInsert().
			Model(&stations).
			On("CONFLICT (name) DO UPDATE").
			Set("idnumber = EXCLUDED.idnumber").
			Set("description = EXCLUDED.description").
			Set("longitude = EXCLUDED.longitude").
			Set("latitude = EXCLUDED.latitude").
			Set("altitude = EXCLUDED.altitude").
			Exec(ctx)
		return err
	})
}

// LoadCatalog builds a catalog from the stored fields of the given surveys,
// or of every survey when none is named.
func (s *Store) LoadCatalog(ctx context.Context, surveys ...string) (*catalog.Catalog, error) {
	var fields []*models.Field
	q := s.db.NewSelect().
		Model(&fields).
		Order("f.id")
	if len(surveys) > 0 {
		q = q.Where("f.survey_name IN (?)", bun.In(surveys))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}

	entries := make([]catalog.Entry, len(fields))
	for i, f := range fields {
		entries[i] = catalog.Entry{
			ID:          f.ID,
			Name:        f.Name,
			Survey:      f.SurveyName,
			Description: f.Description,
			Position:    coord.Sphr{Lon: unit.Angle(f.RA), Lat: unit.Angle(f.Dec)},
			Calibrator:  f.Calibrator,
		}
	}
	return catalog.New(entries)
}

// GetField fetches a field by id.
func (s *Store) GetField(ctx context.Context, id int64) (*models.Field, error) {
	f := new(models.Field)
	err := s.db.NewSelect().
		Model(f).
		Where("f.id = ?", id).
		Scan(ctx)
	if isNoRows(err) {
		return nil, fmt.Errorf("field %d: %w", id, ErrNotFound)
	}
	return f, err
}

type fieldProgressRow struct {
	Name       string `bun:"name"`
	Calibrator bool   `bun:"calibrator"`
	Done       bool   `bun:"done"`
	Beams      int    `bun:"beams"`
}

// SurveySummary reports the observing progress of a survey.
func (s *Store) SurveySummary(ctx context.Context, name string, opts status.SummaryOptions) (status.Summary, error) {
	if _, err := s.GetSurvey(ctx, name); err != nil {
		return status.Summary{}, err
	}

	var rows []fieldProgressRow
	err := s.db.NewSelect().
		TableExpr("fields AS f").
		ColumnExpr("f.name, f.calibrator, f.done").
		ColumnExpr("COUNT(b.id) AS beams").
		Join("LEFT JOIN beams AS b ON b.field_id = f.id").
		Where("f.survey_name = ?", name).
		GroupExpr("f.id").
		OrderExpr("f.id").
		Scan(ctx, &rows)
	if err != nil {
		return status.Summary{}, fmt.Errorf("summarise %s: %w", name, err)
	}

	progress := make([]status.FieldProgress, len(rows))
	for i, r := range rows {
		progress[i] = status.FieldProgress{
			Name:       r.Name,
			Calibrator: r.Calibrator,
			Beams:      r.Beams,
			Done:       r.Done,
		}
	}
	sum := status.Summarize(name, progress, opts)

	q := s.db.NewSelect().
		TableExpr("observations AS o").
		ColumnExpr("MIN(o.start_time) AS first, MAX(o.start_time) AS last").
		Where("o.obsid IN (?)", s.db.NewSelect().
			TableExpr("beams AS b").
			ColumnExpr("b.obsid").
			Join("JOIN fields AS f ON f.id = b.field_id").
			Where("f.survey_name = ?", name).
			Apply(func(q *bun.SelectQuery) *bun.SelectQuery {
				if opts.IncludeCalibrators {
					return q
				}
				return q.Where("f.calibrator = ?", false)
			}))
	var span struct {
		First bun.NullTime `bun:"first"`
		Last  bun.NullTime `bun:"last"`
	}
	if err := q.Scan(ctx, &span); err != nil {
		return status.Summary{}, fmt.Errorf("observing span of %s: %w", name, err)
	}
	sum.First = span.First.Time
	sum.Last = span.Last.Time
	return sum, nil
}
