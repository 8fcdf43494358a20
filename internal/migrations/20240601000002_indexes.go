package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_fields_survey_dec ON fields(survey_name, dec)",
			"CREATE INDEX IF NOT EXISTS idx_fields_calibrator ON fields(calibrator)",
			"CREATE INDEX IF NOT EXISTS idx_observations_start_time ON observations(start_time)",
			"CREATE INDEX IF NOT EXISTS idx_observations_run ON observations(run_id)",
			"CREATE INDEX IF NOT EXISTS idx_beams_field ON beams(field_id)",
			"CREATE INDEX IF NOT EXISTS idx_beams_obsid ON beams(obsid)",
			"CREATE INDEX IF NOT EXISTS idx_subband_data_beam ON subband_data(beam_id)",
			"CREATE INDEX IF NOT EXISTS idx_subband_data_beam_number ON subband_data(beam_id, number)",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"DROP INDEX IF EXISTS idx_fields_survey_dec",
			"DROP INDEX IF EXISTS idx_fields_calibrator",
			"DROP INDEX IF EXISTS idx_observations_start_time",
			"DROP INDEX IF EXISTS idx_observations_run",
			"DROP INDEX IF EXISTS idx_beams_field",
			"DROP INDEX IF EXISTS idx_beams_obsid",
			"DROP INDEX IF EXISTS idx_subband_data_beam",
			"DROP INDEX IF EXISTS idx_subband_data_beam_number",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	})
}
