package parset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lofar-msss/obsdb/internal/descriptor"
)

const sampleParset = `# generated by the scheduler
Observation.nrBeams = 1
Observation.Beam[0].angle1 = 5.2336
Observation.Beam[0].angle2 = 0.7109
Observation.Beam[0].subbandList = [77..79]
Observation.startTime = '2012-09-01 18:00:00'
Observation.stopTime = '2012-09-01 18:01:00'
Observation.Campaign.name = "MSSS"
Observation.Campaign.title = "MSSS LBA Survey"

Observation.clockMode = <<Clock200>>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRead(t *testing.T) {
	m, err := Read("L52000", strings.NewReader(sampleParset))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID() != "L52000" {
		t.Fatalf("unexpected id %s", m.ID())
	}
	if v, ok := m.Lookup(descriptor.KeyCampaignTitle); !ok || v != "MSSS LBA Survey" {
		t.Fatalf("expected unquoted title, got %q", v)
	}
	if v, _ := m.Lookup(descriptor.KeyClockMode); v != "<<Clock200>>" {
		t.Fatalf("unexpected clock mode %q", v)
	}
	if _, ok := m.Lookup("Observation.bandFilter"); ok {
		t.Fatalf("expected absent key")
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if _, err := Read("x", strings.NewReader("Observation.nrBeams 1\n")); err == nil {
		t.Fatalf("expected error for line without '='")
	}
	if _, err := Read("x", strings.NewReader(" = 1\n")); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestListDeduplicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "L1.parset"), sampleParset)
	writeFile(t, filepath.Join(root, "b", "L1.parset"), sampleParset)
	writeFile(t, filepath.Join(root, "b", "L2.parset"), sampleParset)
	writeFile(t, filepath.Join(root, "b", "notes.txt"), "ignored")

	src := NewSource(root)
	paths, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 2 || ObsID(paths[0]) != "L1" || ObsID(paths[1]) != "L2" {
		t.Fatalf("unexpected paths %v", paths)
	}
	if filepath.Base(filepath.Dir(paths[0])) != "a" {
		t.Fatalf("expected first occurrence to win, got %s", paths[0])
	}

	src.KeepDuplicates = true
	paths, err = src.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 paths with duplicates, got %v", paths)
	}
}

func TestLoadReportsErrors(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "L1.parset")
	writeFile(t, good, sampleParset)

	raws, errs := NewSource(root).Load(context.Background(), []string{good, filepath.Join(root, "missing.parset")})
	if len(raws) != 1 || raws[0].ID() != "L1" {
		t.Fatalf("unexpected raws %v", raws)
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func TestLoadAllFeedsBuild(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "L52000.parset"), sampleParset)

	raws, errs := NewSource(root).LoadAll(context.Background())
	if len(errs) != 0 || len(raws) != 1 {
		t.Fatalf("unexpected result %v %v", raws, errs)
	}
	d, err := descriptor.Build(raws[0])
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if d.BeamCount() != 1 || len(d.BeamSubbands(0)) != 3 || d.Clock != 200 {
		t.Fatalf("unexpected descriptor %+v", d)
	}
}
