// Package ingest turns raw observation descriptors into stored runs,
// observations and beams.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soniakeys/unit"

	"github.com/lofar-msss/obsdb/internal/catalog"
	"github.com/lofar-msss/obsdb/internal/config"
	"github.com/lofar-msss/obsdb/internal/descriptor"
	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/runs"
)

// Source loads raw descriptors by id. Failures are reported per id; the
// returned descriptors are the ones that could be read.
type Source interface {
	Load(ctx context.Context, ids []string) ([]descriptor.Raw, []error)
}

// RunRecord is everything stored for one accepted run. Run is nil for
// campaigns ingested one observation at a time. Each observation carries
// its beams; subband records are derived from the beams' subband lists.
type RunRecord struct {
	Run          *models.Run
	Observations []*models.Observation
}

// Persistence stores runs.
type Persistence interface {
	// KnownObservations returns the subset of obsIDs already stored.
	KnownObservations(ctx context.Context, obsIDs []string) (map[string]bool, error)
	// CreateRun stores rec in one transaction and returns the ids of the
	// created beams.
	CreateRun(ctx context.Context, rec *RunRecord) ([]int64, error)
}

// Aggregator is told about every beam the pipeline creates.
type Aggregator interface {
	BeamCreated(ctx context.Context, beamID int64) error
}

// Recorder keeps a log of pipeline executions.
type Recorder interface {
	StartIngest(ctx context.Context, m *models.IngestMetadata) error
	FinishIngest(ctx context.Context, m *models.IngestMetadata) error
}

// Options configures one campaign's ingestion.
type Options struct {
	Campaign         config.Campaign
	Templates        []runs.Template
	CalibratorRadius unit.Angle
	FieldRadius      unit.Angle
	// Recorder is optional.
	Recorder         Recorder `json:"-"`
}

// Pipeline ingests one campaign.
type Pipeline struct {
	source  Source
	catalog *catalog.Catalog
	store   Persistence
	agg     Aggregator
	opts    Options
}

// New creates a pipeline. The catalog is only read.
func New(src Source, cat *catalog.Catalog, store Persistence, agg Aggregator, opts Options) *Pipeline {
	if opts.CalibratorRadius <= 0 {
		opts.CalibratorRadius = unit.Angle(config.DefaultRadius)
	}
	if opts.FieldRadius <= 0 {
		opts.FieldRadius = unit.Angle(config.DefaultRadius)
	}
	if opts.Campaign.Mode == "" {
		opts.Campaign.Mode = config.ModeRuns
	}
	return &Pipeline{source: src, catalog: cat, store: store, agg: agg, opts: opts}
}

// Run loads the descriptors named by ids and ingests those of the campaign.
// Runs stored before a cancellation stay stored.
func (p *Pipeline) Run(ctx context.Context, ids []string) (*Report, error) {
	rep := &Report{IngestID: uuid.NewString(), Campaign: p.opts.Campaign.Name, Mode: p.opts.Campaign.Mode}
	meta := p.startRecord(ctx, rep)

	err := p.run(ctx, ids, rep)
	p.finishRecord(ctx, meta, rep, err)
	return rep, err
}

func (p *Pipeline) run(ctx context.Context, ids []string, rep *Report) error {
	camp := p.opts.Campaign

	raws, loadErrs := p.source.Load(ctx, ids)
	rep.Loaded = len(raws)
	for _, err := range loadErrs {
		log.Printf("WARNING: %v", err)
		rep.LoadErrors++
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	seq := p.build(raws, rep)
	seq, err := p.dropKnown(ctx, seq, rep)
	if err != nil {
		return err
	}

	sort.SliceStable(seq, func(i, j int) bool { return seq[i].Start.Before(seq[j].Start) })
	log.Printf("%d descriptors of campaign %s to ingest", len(seq), camp.Name)

	switch camp.Mode {
	case config.ModeSingle:
		for _, d := range seq {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.persist(ctx, nil, []*descriptor.Descriptor{d}, rep)
		}
	default:
		if len(p.opts.Templates) == 0 {
			return errors.New("no templates configured")
		}
		resolver := runs.CatalogResolver{Catalog: p.catalog, Survey: camp.Survey, Radius: p.opts.CalibratorRadius}
		alloc := runs.NewAllocator(resolver, p.opts.Templates).Allocate(seq)
		for _, r := range alloc.Runs {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Printf("Got a %s run of %d observations calibrated on %s starting at %s", r.Template, len(r.Members), r.Calibrator, r.Members[0].Source)
			run := r
			p.persist(ctx, &run, run.Members, rep)
		}
		for _, d := range alloc.Unclaimed {
			rep.Unmatched = append(rep.Unmatched, d.Source)
		}
		if n := len(rep.Unmatched); n > 0 {
			log.Printf("%d descriptors are not yet part of a run", n)
		}
	}
	return nil
}

// build turns raws into descriptors of the campaign that can be ordered.
func (p *Pipeline) build(raws []descriptor.Raw, rep *Report) []*descriptor.Descriptor {
	camp := p.opts.Campaign
	seq := make([]*descriptor.Descriptor, 0, len(raws))
	for _, raw := range raws {
		d, err := descriptor.Build(raw)
		if err != nil {
			log.Printf("WARNING: skipping %s: %v", raw.ID(), err)
			rep.Malformed++
			continue
		}
		if !d.InCampaign(camp.Name, camp.Title) {
			rep.OtherCampaign++
			continue
		}
		if !d.HasStart() {
			log.Printf("WARNING: skipping %s: no start time", d.Source)
			rep.NoStart++
			continue
		}
		seq = append(seq, d)
	}
	return seq
}

func (p *Pipeline) dropKnown(ctx context.Context, seq []*descriptor.Descriptor, rep *Report) ([]*descriptor.Descriptor, error) {
	if len(seq) == 0 {
		return seq, nil
	}
	ids := make([]string, len(seq))
	for i, d := range seq {
		ids[i] = d.Source
	}
	known, err := p.store.KnownObservations(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check stored observations: %w", err)
	}
	out := seq[:0]
	for _, d := range seq {
		if known[d.Source] {
			rep.AlreadyStored++
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// persist stores one run (or one lone observation when r is nil) and
// announces its beams. Failures are logged and counted; the caller moves on
// to the next run.
func (p *Pipeline) persist(ctx context.Context, r *runs.Run, members []*descriptor.Descriptor, rep *Report) {
	rec, unresolved, err := p.record(r, members)
	rep.UnresolvedBeams += unresolved
	if err != nil {
		p.fail(rep, err)
		return
	}

	beamIDs, err := p.store.CreateRun(ctx, rec)
	if err != nil {
		p.fail(rep, fmt.Errorf("store %s: %w", recordName(rec), err))
		return
	}

	for _, id := range beamIDs {
		if err := p.agg.BeamCreated(ctx, id); err != nil {
			p.fail(rep, fmt.Errorf("aggregate beam %d: %w", id, err))
		}
	}

	sum := RunSummary{Template: "single", Observations: len(rec.Observations), Beams: len(beamIDs)}
	if rec.Run != nil {
		sum.ID, sum.Template, sum.Calibrator, sum.Start = rec.Run.ID, rec.Run.Template, rec.Run.Calibrator, rec.Run.StartTime
	} else {
		sum.Start = rec.Observations[0].StartTime
	}
	rep.Runs = append(rep.Runs, sum)
	rep.Observations += len(rec.Observations)
	rep.Beams += len(beamIDs)
}

// record maps the members of a run to storable models. Beams whose
// pointing matches no field of the survey are left out.
func (p *Pipeline) record(r *runs.Run, members []*descriptor.Descriptor) (*RunRecord, int, error) {
	camp := p.opts.Campaign
	rec := &RunRecord{}
	if r != nil {
		rec.Run = &models.Run{
			ID:         r.ID,
			SurveyName: camp.Survey,
			Campaign:   camp.Name,
			Template:   r.Template,
			Calibrator: r.Calibrator,
			StartTime:  members[0].Start,
			Length:     len(members),
		}
	}

	unresolved := 0
	for _, d := range members {
		o, err := MapToObservation(d, camp.Survey)
		if err != nil {
			return nil, unresolved, err
		}
		for i := 0; i < d.BeamCount(); i++ {
			pos, _ := d.Position(i)
			m, ok := p.catalog.NearestWithinRadius(pos, p.opts.FieldRadius, catalog.Filter{Survey: camp.Survey})
			if !ok || m.Entry.ID == 0 {
				log.Printf("WARNING: unrecognized field: %s beam %d", d.Source, i)
				unresolved++
				continue
			}
			o.Beams = append(o.Beams, MapToBeam(d, i, m.Entry.ID))
		}
		rec.Observations = append(rec.Observations, o)
	}
	return rec, unresolved, nil
}

func (p *Pipeline) fail(rep *Report, err error) {
	log.Printf("WARNING: %v", err)
	rep.Errors = append(rep.Errors, err.Error())
}

func recordName(rec *RunRecord) string {
	if rec.Run != nil {
		return "run " + rec.Run.ID
	}
	if len(rec.Observations) > 0 {
		return "observation " + rec.Observations[0].ObsID
	}
	return "empty record"
}

func (p *Pipeline) startRecord(ctx context.Context, rep *Report) *models.IngestMetadata {
	if p.opts.Recorder == nil {
		return nil
	}
	meta := &models.IngestMetadata{
		IngestID:  rep.IngestID,
		Campaign:  rep.Campaign,
		StartTime: time.Now().UTC(),
		Status:    models.IngestRunning,
	}
	if snap, err := json.Marshal(p.opts); err == nil {
		s := string(snap)
		meta.ConfigSnapshot = &s
	}
	if err := p.opts.Recorder.StartIngest(ctx, meta); err != nil {
		log.Printf("WARNING: record ingest start: %v", err)
		return nil
	}
	return meta
}

func (p *Pipeline) finishRecord(ctx context.Context, meta *models.IngestMetadata, rep *Report, runErr error) {
	if meta == nil {
		return
	}
	end := time.Now().UTC()
	meta.EndTime = &end
	meta.DescriptorsLoaded = rep.Loaded
	meta.DescriptorsSkipped = rep.Skipped()
	meta.RunsAccepted = len(rep.Runs)
	meta.Unmatched = len(rep.Unmatched)
	meta.ErrorsCount = len(rep.Errors)

	errs := rep.Errors
	switch {
	case runErr == nil:
		meta.Status = models.IngestCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		meta.Status = models.IngestCancelled
		// the caller's context is done; the final write must not use it
		ctx = context.WithoutCancel(ctx)
	default:
		meta.Status = models.IngestFailed
		errs = append(errs, runErr.Error())
		meta.ErrorsCount++
	}
	if len(errs) > 0 {
		s := strings.Join(errs, "\n")
		meta.ErrorLog = &s
	}
	if err := p.opts.Recorder.FinishIngest(ctx, meta); err != nil {
		log.Printf("WARNING: record ingest end: %v", err)
	}
}
