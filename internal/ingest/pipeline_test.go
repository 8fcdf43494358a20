package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"

	"github.com/lofar-msss/obsdb/internal/catalog"
	"github.com/lofar-msss/obsdb/internal/config"
	"github.com/lofar-msss/obsdb/internal/descriptor"
	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/runs"
)

var (
	cygA = coord.Sphr{Lon: 5.2336, Lat: 0.7109}
	t0   = time.Date(2012, 9, 1, 18, 0, 0, 0, time.UTC)
)

func targetPos(group, beam int) coord.Sphr {
	return coord.Sphr{
		Lon: unit.Angle(1 + 0.1*float64(group)),
		Lat: unit.Angle(0.2 + 0.1*float64(beam)),
	}
}

func testCatalog(t *testing.T, skip ...string) *catalog.Catalog {
	t.Helper()
	entries := []catalog.Entry{{ID: 1, Name: "CygA", Survey: "MSSS LBA", Position: cygA, Calibrator: true}}
	skipped := make(map[string]bool)
	for _, s := range skip {
		skipped[s] = true
	}
	for _, g := range []int{1, 3, 5, 7} {
		for b := 0; b < 3; b++ {
			name := fmt.Sprintf("T%d_%d", g, b)
			if skipped[name] {
				continue
			}
			entries = append(entries, catalog.Entry{ID: int64(100 + g*10 + b), Name: name, Survey: "MSSS LBA", Position: targetPos(g, b)})
		}
	}
	c, err := catalog.New(entries)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func rawObs(name, campaign string, start time.Time, positions []coord.Sphr) descriptor.Map {
	v := map[string]string{
		descriptor.KeyCampaignName: campaign,
		descriptor.KeyAntennaSet:   "LBA_INNER",
		descriptor.KeyBandFilter:   "LBA_30_90",
		descriptor.KeyClockMode:    "<<Clock200>>",
		descriptor.KeyStations:     "[CS001LBA,CS002LBA]",
		descriptor.KeyNrBeams:      strconv.Itoa(len(positions)),
	}
	if !start.IsZero() {
		v[descriptor.KeyStartTime] = start.Format(descriptor.TimeLayout)
		v[descriptor.KeyStopTime] = start.Add(7 * time.Minute).Format(descriptor.TimeLayout)
	}
	for i, p := range positions {
		v[descriptor.BeamKey(i, "angle1")] = strconv.FormatFloat(p.Lon.Rad(), 'g', -1, 64)
		v[descriptor.BeamKey(i, "angle2")] = strconv.FormatFloat(p.Lat.Rad(), 'g', -1, 64)
		v[descriptor.BeamKey(i, "subbandList")] = "[0..3]"
	}
	return descriptor.Map{Name: name, Values: v}
}

// wideBlock returns a 72-observation block following the wide template.
func wideBlock() []descriptor.Map {
	out := make([]descriptor.Map, 72)
	for i := range out {
		var pos []coord.Sphr
		if i%2 == 0 {
			pos = []coord.Sphr{cygA}
		} else {
			g := i % 8
			pos = []coord.Sphr{targetPos(g, 0), targetPos(g, 1), targetPos(g, 2)}
		}
		out[i] = rawObs(fmt.Sprintf("L%d", 60000+i), "MSSS", t0.Add(time.Duration(i)*10*time.Minute), pos)
	}
	return out
}

type fakeSource struct {
	raws map[string]descriptor.Raw
}

func newFakeSource(maps ...descriptor.Map) (*fakeSource, []string) {
	s := &fakeSource{raws: make(map[string]descriptor.Raw)}
	ids := make([]string, 0, len(maps))
	for _, m := range maps {
		s.raws[m.Name] = m
		ids = append(ids, m.Name)
	}
	return s, ids
}

func (s *fakeSource) Load(_ context.Context, ids []string) ([]descriptor.Raw, []error) {
	var out []descriptor.Raw
	var errs []error
	for _, id := range ids {
		if r, ok := s.raws[id]; ok {
			out = append(out, r)
		} else {
			errs = append(errs, fmt.Errorf("%s: not found", id))
		}
	}
	return out, errs
}

type fakeStore struct {
	known   map[string]bool
	records []*RunRecord
	nextID  int64
	err     error
}

func (s *fakeStore) KnownObservations(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if s.known[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (s *fakeStore) CreateRun(_ context.Context, rec *RunRecord) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.records = append(s.records, rec)
	var ids []int64
	for _, o := range rec.Observations {
		for _, b := range o.Beams {
			s.nextID++
			b.ID = s.nextID
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

type fakeAgg struct {
	created []int64
}

func (a *fakeAgg) BeamCreated(_ context.Context, id int64) error {
	a.created = append(a.created, id)
	return nil
}

type fakeRecorder struct {
	started, finished *models.IngestMetadata
}

func (r *fakeRecorder) StartIngest(_ context.Context, m *models.IngestMetadata) error {
	r.started = m
	return nil
}

func (r *fakeRecorder) FinishIngest(_ context.Context, m *models.IngestMetadata) error {
	r.finished = m
	return nil
}

func lbaOptions(rec Recorder) Options {
	cfg := config.Default()
	camp, _ := cfg.Campaign("lba")
	return Options{Campaign: camp, Templates: runs.DefaultTemplates(), Recorder: rec}
}

func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

func TestPipelineWideRun(t *testing.T) {
	maps := wideBlock()
	maps = append(maps,
		rawObs("L70000", "MSSS_HBA_2013", t0, []coord.Sphr{cygA}),
		rawObs("L70001", "MSSS_HBA_2013", t0.Add(time.Minute), []coord.Sphr{cygA}),
		descriptor.Map{Name: "L70002", Values: map[string]string{descriptor.KeyCampaignName: "MSSS", descriptor.KeyNrBeams: "x"}},
		rawObs("L70003", "MSSS", time.Time{}, []coord.Sphr{cygA}),
		rawObs("L70004", "MSSS", t0.Add(24*time.Hour), []coord.Sphr{cygA}),
		rawObs("L70005", "MSSS", t0.Add(25*time.Hour), []coord.Sphr{targetPos(1, 0)}),
	)
	src, ids := newFakeSource(maps...)
	store := &fakeStore{}
	agg := &fakeAgg{}
	rec := &fakeRecorder{}

	p := New(src, testCatalog(t), store, agg, lbaOptions(rec))
	rep, err := p.Run(context.Background(), append(reversed(ids), "L99999"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.records) != 1 || len(rep.Runs) != 1 {
		t.Fatalf("expected one run, got %d", len(store.records))
	}
	run := store.records[0]
	if run.Run == nil || run.Run.Template != "wide" || run.Run.Calibrator != "CygA" || run.Run.Length != 72 {
		t.Fatalf("unexpected run %+v", run.Run)
	}
	if !run.Run.StartTime.Equal(t0) || run.Observations[0].ObsID != "L60000" || run.Observations[71].ObsID != "L60071" {
		t.Fatalf("expected time-ordered members")
	}
	if rep.Beams != 36+36*3 || len(agg.created) != rep.Beams {
		t.Fatalf("expected 144 created beams, got %d (aggregated %d)", rep.Beams, len(agg.created))
	}
	if b := run.Observations[1].Beams[2]; b.FieldID != 112 || len(b.Subbands) != 4 || b.Number != 2 {
		t.Fatalf("unexpected beam %+v", b)
	}
	if run.Observations[0].Beams[0].FieldID != 1 {
		t.Fatalf("expected calibrator beam on the CygA field")
	}

	if rep.Malformed != 1 || rep.NoStart != 1 || rep.OtherCampaign != 2 || rep.LoadErrors != 1 {
		t.Fatalf("unexpected skip counts %+v", rep)
	}
	if len(rep.Unmatched) != 2 || rep.Unmatched[0] != "L70004" || rep.Unmatched[1] != "L70005" {
		t.Fatalf("unexpected unmatched %v", rep.Unmatched)
	}

	if rec.finished == nil || rec.finished.Status != models.IngestCompleted || rec.finished.RunsAccepted != 1 {
		t.Fatalf("unexpected ingest record %+v", rec.finished)
	}
	if rec.finished.DescriptorsSkipped != 2 || rec.finished.Unmatched != 2 || rec.finished.ConfigSnapshot == nil {
		t.Fatalf("unexpected ingest record %+v", rec.finished)
	}
}

func TestPipelineUnresolvedBeams(t *testing.T) {
	src, ids := newFakeSource(wideBlock()...)
	store := &fakeStore{}
	p := New(src, testCatalog(t, "T3_1"), store, &fakeAgg{}, lbaOptions(nil))

	rep, err := p.Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rep.Runs) != 1 {
		t.Fatalf("expected the run to be stored, got %d", len(rep.Runs))
	}
	if rep.UnresolvedBeams != 9 || rep.Beams != 144-9 {
		t.Fatalf("expected 9 unresolved beams, got %d (beams %d)", rep.UnresolvedBeams, rep.Beams)
	}
	if n := len(store.records[0].Observations[3].Beams); n != 2 {
		t.Fatalf("expected 2 stored beams on a group-3 target, got %d", n)
	}
}

func TestPipelineSingleMode(t *testing.T) {
	a := rawObs("L80001", "MSSS_HBA_2013", t0.Add(time.Hour), []coord.Sphr{targetPos(1, 0)})
	a.Values[descriptor.KeyCampaignTitle] = "MSSS HBA Survey"
	b := rawObs("L80000", "MSSS_HBA_2013", t0, []coord.Sphr{{Lon: 3, Lat: -1}})
	b.Values[descriptor.KeyCampaignTitle] = "MSSS HBA Survey"
	c := rawObs("L80002", "MSSS_HBA_2013", t0, []coord.Sphr{targetPos(1, 0)})
	c.Values[descriptor.KeyCampaignTitle] = "Commissioning"

	cat, err := catalog.New([]catalog.Entry{{ID: 7, Name: "H1", Survey: "MSSS HBA", Position: targetPos(1, 0)}})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	src, ids := newFakeSource(a, b, c)
	store := &fakeStore{}
	hba, _ := config.Default().Campaign("hba")

	rep, err := New(src, cat, store, &fakeAgg{}, Options{Campaign: hba}).Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.records) != 2 || rep.OtherCampaign != 1 {
		t.Fatalf("expected two lone observations, got %d records", len(store.records))
	}
	first, second := store.records[0], store.records[1]
	if first.Run != nil || first.Observations[0].ObsID != "L80000" || second.Observations[0].ObsID != "L80001" {
		t.Fatalf("expected lone observations in time order")
	}
	if len(first.Observations[0].Beams) != 0 || rep.UnresolvedBeams != 1 {
		t.Fatalf("expected unrecognized beam to be dropped")
	}
	if bm := second.Observations[0].Beams; len(bm) != 1 || bm[0].FieldID != 7 {
		t.Fatalf("unexpected beams %+v", bm)
	}
	if len(rep.Unmatched) != 0 {
		t.Fatalf("single mode never reports unmatched descriptors")
	}
}

func TestPipelineSkipsStoredObservations(t *testing.T) {
	src, ids := newFakeSource(wideBlock()...)
	store := &fakeStore{known: map[string]bool{"L60010": true}}
	rep, err := New(src, testCatalog(t), store, &fakeAgg{}, lbaOptions(nil)).Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.AlreadyStored != 1 || len(store.records) != 0 {
		t.Fatalf("expected the broken block not to form a run, got %d runs", len(store.records))
	}
	if len(rep.Unmatched) != 71 {
		t.Fatalf("expected 71 unmatched, got %d", len(rep.Unmatched))
	}
}

func TestPipelineStoreFailure(t *testing.T) {
	src, ids := newFakeSource(wideBlock()...)
	store := &fakeStore{err: errors.New("disk full")}
	agg := &fakeAgg{}
	rec := &fakeRecorder{}

	rep, err := New(src, testCatalog(t), store, agg, lbaOptions(rec)).Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("store failures are reported, not returned: %v", err)
	}
	if len(rep.Errors) != 1 || len(rep.Runs) != 0 || len(agg.created) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if rec.finished.Status != models.IngestCompleted || rec.finished.ErrorsCount != 1 || rec.finished.ErrorLog == nil {
		t.Fatalf("unexpected ingest record %+v", rec.finished)
	}
}

func TestPipelineCancelled(t *testing.T) {
	src, ids := newFakeSource(wideBlock()...)
	rec := &fakeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(src, testCatalog(t), &fakeStore{}, &fakeAgg{}, lbaOptions(rec)).Run(ctx, ids)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if rec.finished == nil || rec.finished.Status != models.IngestCancelled {
		t.Fatalf("expected cancelled ingest record, got %+v", rec.finished)
	}
}

func TestMapToObservation(t *testing.T) {
	d, err := descriptor.Build(rawObs("L1", "MSSS", t0, []coord.Sphr{cygA}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	o, err := MapToObservation(d, "MSSS LBA")
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if o.Duration != 420 || o.Clock == nil || *o.Clock != 200 || len(o.Stations) != 2 || o.Archived != models.StateNone {
		t.Fatalf("unexpected observation %+v", o)
	}

	d.AntennaSet = "LBA_SPARSE"
	if _, err := MapToObservation(d, "MSSS LBA"); err == nil {
		t.Fatalf("expected unknown antenna set to be rejected")
	}
}
