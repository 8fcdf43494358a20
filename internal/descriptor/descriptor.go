// Package descriptor builds normalised observation descriptors from raw
// key/value records.
package descriptor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// Keys read from a raw record.
const (
	KeyNrBeams       = "Observation.nrBeams"
	KeyStartTime     = "Observation.startTime"
	KeyStopTime      = "Observation.stopTime"
	KeyStations      = "Observation.VirtualInstrument.stationList"
	KeyClockMode     = "Observation.clockMode"
	KeyAntennaSet    = "Observation.antennaSet"
	KeyBandFilter    = "Observation.bandFilter"
	KeyCampaignName  = "Observation.Campaign.name"
	KeyCampaignTitle = "Observation.Campaign.title"
)

// BeamKey returns the key of a per-beam attribute, e.g.
// BeamKey(1, "angle2") == "Observation.Beam[1].angle2".
func BeamKey(beam int, attr string) string {
	return fmt.Sprintf("Observation.Beam[%d].%s", beam, attr)
}

// TimeLayout is the layout of start and stop times.
const TimeLayout = "2006-01-02 15:04:05"

// Raw is read-only access to one raw observation record. Lookup reports
// ok == false when the key is absent, which is distinct from a present but
// empty value.
type Raw interface {
	ID() string
	Lookup(key string) (string, bool)
}

// Map is an in-memory Raw.
type Map struct {
	Name   string
	Values map[string]string
}

func (m Map) ID() string { return m.Name }

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m.Values[key]
	return v, ok
}

// FieldError reports a key whose value is present but cannot be parsed.
type FieldError struct {
	Source string
	Key    string
	Value  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s = %q: %v", e.Source, e.Key, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Descriptor is the normalised view of one raw record. Absent attributes
// keep their zero value: no positions, zero times, empty strings, zero clock.
type Descriptor struct {
	Source        string
	Positions     []coord.Sphr // one per beam, radians
	Subbands      [][]int      // one list per beam
	Start         time.Time
	Stop          time.Time
	Stations      []string
	AntennaSet    string
	Clock         int // MHz
	Filter        string
	CampaignName  string
	CampaignTitle string
}

// BeamCount returns the number of beams with a known position.
func (d *Descriptor) BeamCount() int { return len(d.Positions) }

// Position returns the pointing of a beam.
func (d *Descriptor) Position(beam int) (coord.Sphr, bool) {
	if beam < 0 || beam >= len(d.Positions) {
		return coord.Sphr{}, false
	}
	return d.Positions[beam], true
}

// BeamSubbands returns the subband numbers of a beam.
func (d *Descriptor) BeamSubbands(beam int) []int {
	if beam < 0 || beam >= len(d.Subbands) {
		return nil
	}
	return d.Subbands[beam]
}

// HasStart reports whether the start time is known.
func (d *Descriptor) HasStart() bool { return !d.Start.IsZero() }

// Duration returns the observation length in whole seconds.
func (d *Descriptor) Duration() (int, bool) {
	if d.Start.IsZero() || d.Stop.IsZero() {
		return 0, false
	}
	return int(d.Stop.Sub(d.Start) / time.Second), true
}

// InCampaign reports whether the descriptor belongs to the named campaign
// and, when title is not empty, carries that campaign title.
func (d *Descriptor) InCampaign(name, title string) bool {
	if d.CampaignName == "" || d.CampaignName != name {
		return false
	}
	return title == "" || d.CampaignTitle == title
}

// Build normalises a raw record. A value that is present but unparsable
// yields a *FieldError and no descriptor.
func Build(raw Raw) (*Descriptor, error) {
	b := builder{raw: raw, d: &Descriptor{Source: raw.ID()}}
	b.beams()
	b.times()
	b.d.Stations = b.stringVector(KeyStations)
	b.d.Clock = b.clock()
	b.d.AntennaSet = b.str(KeyAntennaSet)
	b.d.Filter = b.str(KeyBandFilter)
	b.d.CampaignName = b.str(KeyCampaignName)
	b.d.CampaignTitle = b.str(KeyCampaignTitle)
	if b.err != nil {
		return nil, b.err
	}
	return b.d, nil
}

// builder records the first parse failure and turns later steps into
// no-ops.
type builder struct {
	raw Raw
	d   *Descriptor
	err error
}

func (b *builder) fail(key, value string, err error) {
	if b.err == nil {
		b.err = &FieldError{Source: b.raw.ID(), Key: key, Value: value, Err: err}
	}
}

func (b *builder) str(key string) string {
	v, _ := b.raw.Lookup(key)
	return strings.TrimSpace(v)
}

func (b *builder) beams() {
	v, ok := b.raw.Lookup(KeyNrBeams)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		b.fail(KeyNrBeams, v, fmt.Errorf("not a beam count"))
		return
	}
	for i := 0; i < n && b.err == nil; i++ {
		ra, okRA := b.float(BeamKey(i, "angle1"))
		dec, okDec := b.float(BeamKey(i, "angle2"))
		if b.err != nil {
			return
		}
		if !okRA || !okDec {
			b.fail(BeamKey(i, "angle1"), "", fmt.Errorf("beam %d of %d has no position", i, n))
			return
		}
		b.d.Positions = append(b.d.Positions, coord.Sphr{Lon: unit.Angle(ra), Lat: unit.Angle(dec)})
		b.d.Subbands = append(b.d.Subbands, b.intVector(BeamKey(i, "subbandList")))
	}
}

func (b *builder) float(key string) (float64, bool) {
	v, ok := b.raw.Lookup(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		b.fail(key, v, err)
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		b.fail(key, v, fmt.Errorf("not a finite number"))
		return 0, false
	}
	return f, true
}

func (b *builder) times() {
	start, okStart := b.time(KeyStartTime)
	stop, okStop := b.time(KeyStopTime)
	if b.err != nil || !okStart {
		return
	}
	b.d.Start = start
	if !okStop {
		return
	}
	if stop.Before(start) {
		b.fail(KeyStopTime, stop.Format(TimeLayout), fmt.Errorf("stop precedes start"))
		return
	}
	b.d.Stop = stop
}

func (b *builder) time(key string) (time.Time, bool) {
	v, ok := b.raw.Lookup(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeLayout, strings.TrimSpace(v))
	if err != nil {
		b.fail(key, v, err)
		return time.Time{}, false
	}
	return t, true
}

func (b *builder) clock() int {
	v, ok := b.raw.Lookup(KeyClockMode)
	if !ok {
		return 0
	}
	// "<<Clock200>>" or a bare "200"
	digits := strings.TrimFunc(v, func(r rune) bool { return r < '0' || r > '9' })
	if i := strings.LastIndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = digits[i+1:]
	}
	mhz, err := strconv.Atoi(digits)
	if err != nil || mhz <= 0 {
		b.fail(KeyClockMode, v, fmt.Errorf("no clock rate"))
		return 0
	}
	return mhz
}

func (b *builder) intVector(key string) []int {
	v, ok := b.raw.Lookup(key)
	if !ok {
		return []int{}
	}
	out, err := ParseIntVector(v)
	if err != nil {
		b.fail(key, v, err)
		return nil
	}
	return out
}

func (b *builder) stringVector(key string) []string {
	v, ok := b.raw.Lookup(key)
	if !ok {
		return nil
	}
	return ParseStringVector(v)
}
