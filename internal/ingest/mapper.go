package ingest

import (
	"fmt"

	"github.com/lofar-msss/obsdb/internal/descriptor"
	"github.com/lofar-msss/obsdb/internal/models"
)

// MapToObservation converts a descriptor to an observation of survey,
// without beams.
func MapToObservation(d *descriptor.Descriptor, survey string) (*models.Observation, error) {
	o := &models.Observation{
		ObsID:         d.Source,
		SurveyName:    survey,
		AntennaSet:    models.AntennaSet(d.AntennaSet),
		StartTime:     d.Start,
		Filter:        models.BandFilter(d.Filter),
		Stations:      models.StringArray(d.Stations),
		CampaignName:  d.CampaignName,
		CampaignTitle: d.CampaignTitle,
		Archived:      models.StateNone,
		OnRemote:      models.StateNone,
	}
	if dur, ok := d.Duration(); ok {
		o.Duration = dur
	}
	if d.Clock > 0 {
		clock := d.Clock
		o.Clock = &clock
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("observation %s: %w", d.Source, err)
	}
	return o, nil
}

// MapToBeam converts beam i of d, pointed at fieldID.
func MapToBeam(d *descriptor.Descriptor, i int, fieldID int64) *models.Beam {
	return &models.Beam{
		ObsID:    d.Source,
		Number:   i,
		FieldID:  fieldID,
		Subbands: models.IntArray(d.BeamSubbands(i)),
		Archived: models.StateNone,
		OnRemote: models.StateNone,
	}
}
