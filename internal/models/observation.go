package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Observation is one telescope observation, identified by its obsid.
type Observation struct {
	bun.BaseModel `bun:"table:observations,alias:o"`

	ObsID         string      `bun:"obsid,pk" json:"obsid"`
	RunID         *string     `bun:"run_id" json:"run_id,omitempty"`
	SurveyName    string      `bun:"survey_name,notnull" json:"survey_name"`
	AntennaSet    AntennaSet  `bun:"antenna_set" json:"antenna_set"`
	StartTime     time.Time   `bun:"start_time,notnull" json:"start_time"`
	Duration      int         `bun:"duration,notnull,default:0" json:"duration"`
	Clock         *int        `bun:"clock" json:"clock,omitempty"`
	Filter        BandFilter  `bun:"filter" json:"filter"`
	Stations      StringArray `bun:"stations,type:json,notnull" json:"stations"`
	CampaignName  string      `bun:"campaign_name" json:"campaign_name"`
	CampaignTitle string      `bun:"campaign_title" json:"campaign_title"`
	Archived      TriState    `bun:"archived,notnull,default:'none'" json:"archived"`
	OnRemote      TriState    `bun:"on_remote,notnull,default:'none'" json:"on_remote"`
	Invalid       bool        `bun:"invalid,notnull,default:false" json:"invalid"`

	Beams []*Beam `bun:"rel:has-many,join:obsid=obsid" json:"beams,omitempty"`
}

// Validate checks that required Observation fields are present.
func (o *Observation) Validate() error {
	if o.ObsID == "" {
		return errors.New("obsid is required")
	}
	if o.SurveyName == "" {
		return errors.New("survey is required")
	}
	if o.StartTime.IsZero() {
		return errors.New("start time is required")
	}
	if o.Duration < 0 {
		return errors.New("duration must not be negative")
	}
	if o.AntennaSet != "" && !o.AntennaSet.Known() {
		return fmt.Errorf("unknown antenna set %q", o.AntennaSet)
	}
	if o.Filter != "" && !o.Filter.Known() {
		return fmt.Errorf("unknown band filter %q", o.Filter)
	}
	if o.Clock != nil && *o.Clock != Clock160 && *o.Clock != Clock200 {
		return fmt.Errorf("unsupported clock %d MHz", *o.Clock)
	}
	return nil
}

// EndTime returns the time the observation finished.
func (o *Observation) EndTime() time.Time {
	return o.StartTime.Add(time.Duration(o.Duration) * time.Second)
}

// Beam is one sub-array pointing of an observation, assigned to a field.
type Beam struct {
	bun.BaseModel `bun:"table:beams,alias:b"`

	ID       int64    `bun:"id,pk,autoincrement" json:"id"`
	ObsID    string   `bun:"obsid,notnull,unique:obs_beam" json:"obsid"`
	Number   int      `bun:"number,notnull,unique:obs_beam" json:"number"`
	FieldID  int64    `bun:"field_id,notnull" json:"field_id"`
	Subbands IntArray `bun:"subbands,type:json,notnull" json:"subbands"`
	Archived TriState `bun:"archived,notnull,default:'none'" json:"archived"`
	OnRemote TriState `bun:"on_remote,notnull,default:'none'" json:"on_remote"`
	Good     bool     `bun:"good,notnull,default:false" json:"good"`

	Observation *Observation   `bun:"rel:belongs-to,join:obsid=obsid" json:"-"`
	Field       *Field         `bun:"rel:belongs-to,join:field_id=id" json:"-"`
	SubbandData []*SubbandData `bun:"rel:has-many,join:id=beam_id" json:"subband_data,omitempty"`
}

// String renders the beam as "<obsid> beam <n>".
func (b *Beam) String() string {
	return fmt.Sprintf("%s beam %d", b.ObsID, b.Number)
}

// SubbandData records where the data of one subband of a beam lives.
type SubbandData struct {
	bun.BaseModel `bun:"table:subband_data,alias:sd"`

	ID          string  `bun:"id,pk" json:"id"`
	BeamID      int64   `bun:"beam_id,notnull" json:"beam_id"`
	Number      int     `bun:"number,notnull" json:"number"`
	Subband     int     `bun:"subband,notnull" json:"subband"`
	Size        *int64  `bun:"size" json:"size,omitempty"`
	Hostname    string  `bun:"hostname,notnull,default:''" json:"hostname"`
	Path        string  `bun:"path,notnull,default:''" json:"path"`
	ArchiveSite *string `bun:"archive_site" json:"archive_site,omitempty"`

	Beam *Beam `bun:"rel:belongs-to,join:beam_id=id" json:"-"`
}

// SubbandDataID builds the primary key of the n-th subband record of an
// observation.
func SubbandDataID(obsID string, n int) string {
	return fmt.Sprintf("%s_%d", obsID, n)
}

// IsArchived reports whether the subband has been written to an archive.
func (s *SubbandData) IsArchived() bool {
	return s.ArchiveSite != nil && *s.ArchiveSite != ""
}

// IsOnRemote reports whether the subband is available on a processing node.
func (s *SubbandData) IsOnRemote() bool {
	return s.Hostname != "" && s.Path != ""
}
