package models

import (
	"errors"
	"math"

	"github.com/uptrace/bun"
)

// DefaultBeamsPerField is the field quota used by MSSS LBA.
const DefaultBeamsPerField = 9

// Survey groups the fields of one sky survey.
type Survey struct {
	bun.BaseModel `bun:"table:surveys,alias:sv"`

	Name          string  `bun:"name,pk" json:"name"`
	Description   string  `bun:"description" json:"description"`
	BeamsPerField int     `bun:"beams_per_field,notnull,default:9" json:"beams_per_field"`
	FieldSize     float64 `bun:"field_size,notnull,default:0" json:"field_size"`

	Fields []*Field `bun:"rel:has-many,join:name=survey_name" json:"fields,omitempty"`
}

// Quota returns the number of archived beams a field needs to count as
// fully archived.
func (s *Survey) Quota() int {
	if s.BeamsPerField <= 0 {
		return DefaultBeamsPerField
	}
	return s.BeamsPerField
}

// Field is a named pointing of a survey, either a science target or a
// calibrator.
type Field struct {
	bun.BaseModel `bun:"table:fields,alias:f"`

	ID          int64    `bun:"id,pk,autoincrement" json:"id"`
	Name        string   `bun:"name,notnull,unique:survey_field" json:"name"`
	SurveyName  string   `bun:"survey_name,notnull,unique:survey_field" json:"survey_name"`
	Description string   `bun:"description" json:"description"`
	RA          float64  `bun:"ra,notnull" json:"ra"`
	Dec         float64  `bun:"dec,notnull" json:"dec"`
	Calibrator  bool     `bun:"calibrator,notnull,default:false" json:"calibrator"`
	Archived    TriState `bun:"archived,notnull,default:'none'" json:"archived"`
	OnRemote    TriState `bun:"on_remote,notnull,default:'none'" json:"on_remote"`
	Done        bool     `bun:"done,notnull,default:false" json:"done"`

	Survey *Survey `bun:"rel:belongs-to,join:survey_name=name" json:"-"`
	Beams  []*Beam `bun:"rel:has-many,join:id=field_id" json:"beams,omitempty"`
}

// Validate checks that required Field fields are present.
func (f *Field) Validate() error {
	if f.Name == "" {
		return errors.New("field name is required")
	}
	if f.SurveyName == "" {
		return errors.New("survey is required")
	}
	if !(f.RA >= 0 && f.RA < 2*math.Pi) {
		return errors.New("ra must be in [0, 2pi)")
	}
	if !(f.Dec >= -math.Pi/2 && f.Dec <= math.Pi/2) {
		return errors.New("dec must be in [-pi/2, pi/2]")
	}
	return nil
}

// ArchiveSite is a long-term storage location holding subband data.
type ArchiveSite struct {
	bun.BaseModel `bun:"table:archive_sites,alias:as"`

	Name string `bun:"name,pk" json:"name"`
}

// Station is a telescope station that may take part in observations.
type Station struct {
	bun.BaseModel `bun:"table:stations,alias:st"`

	Name        string  `bun:"name,pk" json:"name"`
	IDNumber    int     `bun:"idnumber" json:"idnumber"`
	Description string  `bun:"description" json:"description"`
	Longitude   float64 `bun:"longitude" json:"longitude"`
	Latitude    float64 `bun:"latitude" json:"latitude"`
	Altitude    float64 `bun:"altitude" json:"altitude"`
}
