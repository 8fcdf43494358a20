package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/lofar-msss/obsdb/internal/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.Survey)(nil),
			(*models.Field)(nil),
			(*models.Station)(nil),
			(*models.ArchiveSite)(nil),
			(*models.Run)(nil),
			(*models.Observation)(nil),
			(*models.Beam)(nil),
			(*models.SubbandData)(nil),
			(*models.IngestMetadata)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.IngestMetadata)(nil),
			(*models.SubbandData)(nil),
			(*models.Beam)(nil),
			(*models.Observation)(nil),
			(*models.Run)(nil),
			(*models.ArchiveSite)(nil),
			(*models.Station)(nil),
			(*models.Field)(nil),
			(*models.Survey)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}
