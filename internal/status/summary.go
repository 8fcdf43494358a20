package status

import "time"

// FieldProgress is the per-field input of a survey summary.
type FieldProgress struct {
	Name       string
	Calibrator bool
	Beams      int
	Done       bool
}

// SummaryOptions selects which fields a summary counts.
type SummaryOptions struct {
	// IncludeCalibrators counts calibrator fields alongside targets.
	IncludeCalibrators bool
}

// Summary reports the observing progress of one survey.
type Summary struct {
	Survey      string
	Fields      int
	Observed    int
	Done        int
	Beams       int
	ObservedPct float64
	DonePct     float64
	// First and Last bound the start times of observations with beams in
	// the survey. Both are zero when nothing was observed.
	First time.Time
	Last  time.Time
}

// Summarize counts fields, observed fields (at least one beam), done fields
// and beams.
func Summarize(survey string, fields []FieldProgress, opts SummaryOptions) Summary {
	s := Summary{Survey: survey}
	for _, f := range fields {
		if f.Calibrator && !opts.IncludeCalibrators {
			continue
		}
		s.Fields++
		s.Beams += f.Beams
		if f.Beams > 0 {
			s.Observed++
		}
		if f.Done {
			s.Done++
		}
	}
	if s.Fields > 0 {
		s.ObservedPct = 100 * float64(s.Observed) / float64(s.Fields)
		s.DonePct = 100 * float64(s.Done) / float64(s.Fields)
	}
	return s
}
