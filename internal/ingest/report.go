package ingest

import (
	"fmt"
	"io"
	"time"
)

// RunSummary describes one stored run.
type RunSummary struct {
	ID           string
	Template     string
	Calibrator   string
	Start        time.Time
	Observations int
	Beams        int
}

// Report is the outcome of one pipeline execution.
type Report struct {
	IngestID string
	Campaign string
	Mode     string

	Loaded        int
	LoadErrors    int
	Malformed     int
	NoStart       int
	OtherCampaign int
	AlreadyStored int

	Runs            []RunSummary
	Observations    int
	Beams           int
	UnresolvedBeams int

	// Unmatched lists, in time order, the descriptors that are not yet part
	// of a run.
	Unmatched []string
	Errors    []string
}

// Skipped counts descriptors that could not be considered for a run.
func (r *Report) Skipped() int {
	return r.Malformed + r.NoStart
}

// Write prints a human-readable summary.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "ingest %s (campaign %s, mode %s)\n", r.IngestID, r.Campaign, r.Mode)
	fmt.Fprintf(w, "  loaded %d, unreadable %d, malformed %d, without start time %d\n", r.Loaded, r.LoadErrors, r.Malformed, r.NoStart)
	fmt.Fprintf(w, "  other campaigns %d, already stored %d\n", r.OtherCampaign, r.AlreadyStored)
	fmt.Fprintf(w, "  runs %d, observations %d, beams %d, unrecognized beams %d\n", len(r.Runs), r.Observations, r.Beams, r.UnresolvedBeams)
	for _, run := range r.Runs {
		if run.ID == "" {
			continue
		}
		fmt.Fprintf(w, "    %s %s %s %s (%d observations)\n", run.Start.Format(time.RFC3339), run.Template, run.Calibrator, run.ID, run.Observations)
	}
	if len(r.Unmatched) > 0 {
		fmt.Fprintf(w, "  not yet part of a run: %d\n", len(r.Unmatched))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}
