package models

import (
	"math"
	"testing"
	"time"
)

func TestObservationValidate(t *testing.T) {
	clock := 200
	valid := &Observation{
		ObsID:      "L52001",
		SurveyName: "MSSS LBA",
		AntennaSet: AntennaLBAInner,
		StartTime:  time.Date(2012, 9, 1, 12, 0, 0, 0, time.UTC),
		Duration:   420,
		Clock:      &clock,
		Filter:     FilterLBA3090,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid observation, got error: %v", err)
	}

	invalid := &Observation{}
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected error for empty observation")
	}

	bad := *valid
	bad.AntennaSet = "LBA_SPARSE"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for unknown antenna set")
	}

	clock = 170
	if err := valid.Validate(); err == nil {
		t.Fatalf("expected error for unsupported clock")
	}
}

func TestObservationEndTime(t *testing.T) {
	o := &Observation{StartTime: time.Date(2012, 9, 1, 12, 0, 0, 0, time.UTC), Duration: 90}
	if got := o.EndTime(); !got.Equal(time.Date(2012, 9, 1, 12, 1, 30, 0, time.UTC)) {
		t.Fatalf("unexpected end time %v", got)
	}
}

func TestFieldValidate(t *testing.T) {
	f := &Field{Name: "L229+46", SurveyName: "MSSS LBA", RA: 4.0, Dec: 0.8}
	if err := f.Validate(); err != nil {
		t.Fatalf("expected valid field, got error: %v", err)
	}
	f.Dec = 2
	if err := f.Validate(); err == nil {
		t.Fatalf("expected error for dec out of range")
	}
	f.Dec, f.RA = 0.8, math.NaN()
	if err := f.Validate(); err == nil {
		t.Fatalf("expected error for NaN ra")
	}
}

func TestSurveyQuota(t *testing.T) {
	if q := (&Survey{}).Quota(); q != DefaultBeamsPerField {
		t.Fatalf("expected default quota, got %d", q)
	}
	if q := (&Survey{BeamsPerField: 4}).Quota(); q != 4 {
		t.Fatalf("expected quota 4, got %d", q)
	}
}

func TestSubbandHelpers(t *testing.T) {
	s := &SubbandData{}
	if s.IsArchived() || s.IsOnRemote() {
		t.Fatalf("expected empty subband to be neither archived nor on remote")
	}
	s.Hostname = "locus001"
	if s.IsOnRemote() {
		t.Fatalf("expected hostname without path to be unavailable")
	}
	s.Path = "/data/L52001/L52001_SAP000_SB000_uv.MS"
	if !s.IsOnRemote() {
		t.Fatalf("expected hostname and path to be available")
	}
	site := "LTA"
	s.ArchiveSite = &site
	if !s.IsArchived() {
		t.Fatalf("expected archived")
	}
	if id := SubbandDataID("L52001", 7); id != "L52001_7" {
		t.Fatalf("unexpected subband id %s", id)
	}
}

func TestTriState(t *testing.T) {
	for _, s := range []TriState{StateAll, StateSome, StateNone} {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if TriState("partial").Valid() {
		t.Fatalf("expected unknown state to be invalid")
	}
	if !StateSome.Any() || StateNone.Any() {
		t.Fatalf("unexpected Any result")
	}
}

func TestIntArrayScan(t *testing.T) {
	var a IntArray
	if err := a.Scan("[1,2,3]"); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if len(a) != 3 || a[2] != 3 {
		t.Fatalf("unexpected array %v", a)
	}
	if err := a.Scan([]byte("[]")); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if len(a) != 0 {
		t.Fatalf("expected empty array, got %v", a)
	}
	if err := a.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}
}
