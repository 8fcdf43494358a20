package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Run is a claimed block of observations that matched a scheduling template.
type Run struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	ID         string    `bun:"id,pk" json:"id"`
	SurveyName string    `bun:"survey_name,notnull" json:"survey_name"`
	Campaign   string    `bun:"campaign,notnull" json:"campaign"`
	Template   string    `bun:"template,notnull" json:"template"`
	Calibrator string    `bun:"calibrator" json:"calibrator"`
	StartTime  time.Time `bun:"start_time,notnull" json:"start_time"`
	Length     int       `bun:"length,notnull" json:"length"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Observations []*Observation `bun:"rel:has-many,join:id=run_id" json:"observations,omitempty"`
}

// Ingest status values.
const (
	IngestRunning   = "running"
	IngestCompleted = "completed"
	IngestCancelled = "cancelled"
	IngestFailed    = "failed"
)

// IngestMetadata tracks pipeline executions and their outcomes.
type IngestMetadata struct {
	bun.BaseModel `bun:"table:ingest_metadata,alias:im"`

	ID                 int64      `bun:"id,pk,autoincrement" json:"id"`
	IngestID           string     `bun:"ingest_id,unique,notnull" json:"ingest_id"`
	Campaign           string     `bun:"campaign,notnull" json:"campaign"`
	StartTime          time.Time  `bun:"start_time,notnull" json:"start_time"`
	EndTime            *time.Time `bun:"end_time" json:"end_time,omitempty"`
	Status             string     `bun:"status,notnull" json:"status"`
	DescriptorsLoaded  int        `bun:"descriptors_loaded,default:0" json:"descriptors_loaded"`
	DescriptorsSkipped int        `bun:"descriptors_skipped,default:0" json:"descriptors_skipped"`
	RunsAccepted       int        `bun:"runs_accepted,default:0" json:"runs_accepted"`
	Unmatched          int        `bun:"unmatched,default:0" json:"unmatched"`
	ErrorsCount        int        `bun:"errors_count,default:0" json:"errors_count"`
	ErrorLog           *string    `bun:"error_log" json:"error_log,omitempty"`
	ConfigSnapshot     *string    `bun:"config_snapshot" json:"config_snapshot,omitempty"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Finished reports whether the execution has reached a terminal status.
func (m *IngestMetadata) Finished() bool {
	return m.Status == IngestCompleted || m.Status == IngestCancelled || m.Status == IngestFailed
}
