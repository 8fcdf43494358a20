package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/uptrace/bun"

	"github.com/lofar-msss/obsdb/internal/catalog"
	"github.com/lofar-msss/obsdb/internal/config"
	"github.com/lofar-msss/obsdb/internal/database"
	"github.com/lofar-msss/obsdb/internal/ingest"
	"github.com/lofar-msss/obsdb/internal/migrations"
	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/repositories"
	"github.com/lofar-msss/obsdb/internal/sources/operator"
	"github.com/lofar-msss/obsdb/internal/sources/parset"
	"github.com/lofar-msss/obsdb/internal/status"
)

// env is what every command works against.
type env struct {
	cfg   config.Config
	db    *bun.DB
	store *repositories.Store
	agg   *status.Aggregator
}

func openEnv(s settings) (*env, error) {
	cfg, err := config.LoadFile(s.Pipeline.Config)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(s.Database)
	if err != nil {
		return nil, err
	}
	store := repositories.NewStore(db, cfg.Retry)
	return &env{cfg: cfg, db: db, store: store, agg: status.NewAggregator(store)}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		log.Printf("WARNING: close database: %v", err)
	}
}

func runMigrate(ctx context.Context, s settings, args []string) error {
	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()
	return migrations.RunMigrations(ctx, e.db)
}

func runCreateSurvey(ctx context.Context, s settings, args []string) error {
	flags := flag.NewFlagSet("create-survey", flag.ExitOnError)
	name := flags.String("survey", "MSSS LBA", "configured survey name")
	calibrators := flags.String("calibrators", "", "calibrator grid file")
	targets := flags.String("targets", "", "target grid file")
	_ = flags.Parse(args)

	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()

	sv, ok := e.cfg.SurveyByName(*name)
	if !ok {
		return fmt.Errorf("survey %q is not configured", *name)
	}
	if _, err := e.store.CreateSurvey(ctx, &models.Survey{
		Name:          sv.Name,
		Description:   sv.Description,
		BeamsPerField: sv.BeamsPerField,
	}); err != nil {
		return err
	}

	var entries []catalog.Entry
	for _, grid := range []struct {
		path       string
		calibrator bool
	}{{*calibrators, true}, {*targets, false}} {
		if grid.path == "" {
			continue
		}
		got, err := readGrid(grid.path, sv.Name, grid.calibrator)
		if err != nil {
			return err
		}
		entries = append(entries, got...)
	}
	if err := e.store.InsertFields(ctx, entries); err != nil {
		return err
	}
	log.Printf("Created survey %s with %d fields", sv.Name, len(entries))
	return nil
}

func readGrid(path, survey string, calibrator bool) ([]catalog.Entry, error) {
	return parseFile(path, func(r io.Reader) ([]catalog.Entry, error) {
		return catalog.ParseGrid(r, survey, calibrator)
	})
}

func runCreateStations(ctx context.Context, s settings, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: msssdb create-stations <station file>")
	}
	stations, err := parseFile(args[0], operator.ParseStations)
	if err != nil {
		return err
	}

	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.store.InsertStations(ctx, stations); err != nil {
		return err
	}
	log.Printf("Stored %d stations", len(stations))
	return nil
}

func runIngest(ctx context.Context, s settings, args []string) error {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	key := flags.String("campaign", "lba", "configured campaign key")
	dir := flags.String("dir", ".", "directory searched for parsets when none are named")
	_ = flags.Parse(args)

	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()

	camp, err := e.cfg.Campaign(*key)
	if err != nil {
		return err
	}
	cat, err := e.store.LoadCatalog(ctx, camp.Survey)
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		return fmt.Errorf("survey %s has no fields; run create-survey first", camp.Survey)
	}

	src := parset.NewSource(*dir)
	ids := flags.Args()
	if len(ids) == 0 {
		if ids, err = src.List(ctx); err != nil {
			return err
		}
	}

	p := ingest.New(src, cat, e.store, e.agg, ingest.Options{
		Campaign:         camp,
		Templates:        e.cfg.TemplatesFor(camp),
		CalibratorRadius: e.cfg.CalibratorAngle(),
		FieldRadius:      e.cfg.FieldAngle(),
		Recorder:         e.store,
	})
	rep, err := p.Run(ctx, ids)
	if rep != nil {
		rep.Write(os.Stdout)
	}
	return err
}

func runMarkArchived(ctx context.Context, s settings, args []string) error {
	flags := flag.NewFlagSet("mark-archived", flag.ExitOnError)
	lta := flags.String("lta", "", "long-term archive export; its obsids are archived at -site")
	site := flags.String("site", "LTA", "archive site of the -lta export")
	_ = flags.Parse(args)

	type batch struct {
		ids  []string
		site string
	}
	var batches []batch
	for _, path := range flags.Args() {
		ranges, err := parseFile(path, operator.ParseArchiveRanges)
		if err != nil {
			return err
		}
		for _, r := range ranges {
			batches = append(batches, batch{r.ObsIDs(), r.Site})
		}
	}
	if *lta != "" {
		ids, err := parseFile(*lta, operator.ParseObsIDList)
		if err != nil {
			return err
		}
		batches = append(batches, batch{ids, *site})
	}
	if len(batches) == 0 {
		return errors.New("usage: msssdb mark-archived [-lta export [-site name]] [range file...]")
	}

	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()

	for _, b := range batches {
		beams, err := e.store.MarkArchived(ctx, b.ids, b.site)
		if err != nil {
			return err
		}
		changed, err := e.agg.RecomputeBeams(ctx, beams)
		if err != nil {
			return err
		}
		log.Printf("Archived %d observations at %s, %d beams changed", len(b.ids), b.site, changed)
	}
	return nil
}

func runInsertNodeData(ctx context.Context, s settings, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: msssdb insert-node-data <host>.log...")
	}
	logs := make([]map[string][]repositories.Location, 0, len(args))
	for _, path := range args {
		host := operator.Hostname(path)
		locs, err := parseFile(path, func(r io.Reader) (map[string][]repositories.Location, error) {
			return operator.ParseNodeLog(host, r)
		})
		if err != nil {
			return err
		}
		logs = append(logs, locs)
	}
	merged, obsIDs := operator.MergeLocations(logs...)

	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()

	for _, id := range obsIDs {
		beams, err := e.store.SetSubbandLocations(ctx, id, merged[id])
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		log.Printf("Processing %s", id)
		if _, err := e.agg.RecomputeBeams(ctx, beams); err != nil {
			return err
		}
	}
	return nil
}

func runMarkInvalid(ctx context.Context, s settings, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: msssdb mark-invalid <obsid>...")
	}
	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()

	for _, id := range args {
		if _, err := e.store.MarkInvalid(ctx, id); err != nil {
			return err
		}
		log.Printf("Marked %s invalid", id)
	}
	return nil
}

func runSummary(ctx context.Context, s settings, args []string) error {
	flags := flag.NewFlagSet("summary", flag.ExitOnError)
	name := flags.String("survey", "MSSS LBA", "survey name")
	calibrators := flags.Bool("calibrators", false, "count calibrator fields")
	_ = flags.Parse(args)

	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()

	sum, err := e.store.SurveySummary(ctx, *name, status.SummaryOptions{IncludeCalibrators: *calibrators})
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", sum.Survey)
	fmt.Printf("  fields   %d\n", sum.Fields)
	fmt.Printf("  observed %d (%.1f%%)\n", sum.Observed, sum.ObservedPct)
	fmt.Printf("  done     %d (%.1f%%)\n", sum.Done, sum.DonePct)
	fmt.Printf("  beams    %d\n", sum.Beams)
	if !sum.First.IsZero() {
		fmt.Printf("  from %s to %s\n", sum.First.Format("2006-01-02 15:04"), sum.Last.Format("2006-01-02 15:04"))
	}
	return nil
}

func runShow(ctx context.Context, s settings, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: msssdb show <obsid>")
	}
	e, err := openEnv(s)
	if err != nil {
		return err
	}
	defer e.close()

	o, err := e.store.GetObservation(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s %s %s %ds archived=%s on_remote=%s invalid=%t\n",
		o.ObsID, o.SurveyName, o.StartTime.Format("2006-01-02 15:04:05"), o.Duration, o.Archived, o.OnRemote, o.Invalid)
	for _, b := range o.Beams {
		f, err := e.store.GetField(ctx, b.FieldID)
		if err != nil {
			return err
		}
		fmt.Printf("  beam %d -> %s: %d subbands archived=%s on_remote=%s good=%t\n",
			b.Number, f.Name, len(b.SubbandData), b.Archived, b.OnRemote, b.Good)
	}
	return nil
}

func parseFile[T any](path string, parse func(r io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer func() {
		_ = f.Close()
	}()
	v, err := parse(f)
	if err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
