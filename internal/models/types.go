package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// TriState summarises a predicate over a node's children.
type TriState string

const (
	StateAll  TriState = "all"
	StateSome TriState = "some"
	StateNone TriState = "none"
)

// Valid reports whether t is one of the three known states.
func (t TriState) Valid() bool {
	switch t {
	case StateAll, StateSome, StateNone:
		return true
	}
	return false
}

// Any reports whether at least some children satisfy the predicate.
func (t TriState) Any() bool {
	return t == StateAll || t == StateSome
}

// AntennaSet is the station antenna configuration used for an observation.
type AntennaSet string

const (
	AntennaHBADual      AntennaSet = "HBA_DUAL"
	AntennaHBADualInner AntennaSet = "HBA_DUAL_INNER"
	AntennaHBAJoined    AntennaSet = "HBA_JOINED"
	AntennaHBAOne       AntennaSet = "HBA_ONE"
	AntennaHBAZero      AntennaSet = "HBA_ZERO"
	AntennaHBAZeroInner AntennaSet = "HBA_ZERO_INNER"
	AntennaLBAInner     AntennaSet = "LBA_INNER"
	AntennaLBAOuter     AntennaSet = "LBA_OUTER"
	AntennaLBAX         AntennaSet = "LBA_X"
	AntennaLBAY         AntennaSet = "LBA_Y"
)

var antennaSets = map[AntennaSet]bool{
	AntennaHBADual: true, AntennaHBADualInner: true, AntennaHBAJoined: true,
	AntennaHBAOne: true, AntennaHBAZero: true, AntennaHBAZeroInner: true,
	AntennaLBAInner: true, AntennaLBAOuter: true, AntennaLBAX: true, AntennaLBAY: true,
}

// Known reports whether a is a recognised antenna set.
func (a AntennaSet) Known() bool { return antennaSets[a] }

// BandFilter is the analogue band filter selection.
type BandFilter string

const (
	FilterHBA110190 BandFilter = "HBA_110_190"
	FilterHBA170230 BandFilter = "HBA_170_230"
	FilterHBA210250 BandFilter = "HBA_210_250"
	FilterLBA1070   BandFilter = "LBA_10_70"
	FilterLBA1090   BandFilter = "LBA_10_90"
	FilterLBA3070   BandFilter = "LBA_30_70"
	FilterLBA3090   BandFilter = "LBA_30_90"
)

var bandFilters = map[BandFilter]string{
	FilterHBA110190: "110-190 MHz",
	FilterHBA170230: "170-230 MHz",
	FilterHBA210250: "210-250 MHz",
	FilterLBA1070:   "10-70 MHz",
	FilterLBA1090:   "10-90 MHz",
	FilterLBA3070:   "30-70 MHz",
	FilterLBA3090:   "30-90 MHz",
}

// Known reports whether f is a recognised band filter.
func (f BandFilter) Known() bool {
	_, ok := bandFilters[f]
	return ok
}

// Label returns the human-readable frequency range.
func (f BandFilter) Label() string { return bandFilters[f] }

// Clock rates in MHz.
const (
	Clock160 = 160
	Clock200 = 200
)

// StringArray stores a slice of strings in SQLite as JSON.
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("scan StringArray: %w", err)
	}
	return json.Unmarshal(data, s)
}

// IntArray stores a slice of ints in SQLite as JSON.
type IntArray []int

func (a IntArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *IntArray) Scan(value interface{}) error {
	if value == nil {
		*a = IntArray{}
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("scan IntArray: %w", err)
	}
	return json.Unmarshal(data, a)
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported column type")
	}
}
