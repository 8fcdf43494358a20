// Package status derives the archive and remote-store states of the survey
// hierarchy from its subband records.
//
// Every derived value is recomputed from the current children of a node, so
// recomputing a node twice, or recomputing siblings in any order, converges
// on the same result.
package status

import (
	"fmt"

	"github.com/lofar-msss/obsdb/internal/models"
)

// Classify maps k satisfying children out of n to a tri-state.
func Classify(k, n int) models.TriState {
	switch {
	case n == 0:
		return models.StateNone
	case k >= n:
		return models.StateAll
	case k > 0:
		return models.StateSome
	default:
		return models.StateNone
	}
}

// Leaf is the storage state of one subband record.
type Leaf struct {
	Archived bool
	OnRemote bool
}

// Status is the derived state of a beam, observation or field. Good is only
// meaningful for beams and Done only for fields.
type Status struct {
	Archived models.TriState
	OnRemote models.TriState
	Good     bool
	Done     bool
}

// Empty is the state of a node without children.
var Empty = Status{Archived: models.StateNone, OnRemote: models.StateNone}

func (s Status) String() string {
	return fmt.Sprintf("archived=%s on_remote=%s good=%t done=%t", s.Archived, s.OnRemote, s.Good, s.Done)
}

// BeamStatus derives a beam from its subband records. A beam is good when
// every subband is archived or on the remote store; a beam without subbands
// is not good.
func BeamStatus(subbands []Leaf) Status {
	archived, remote, available := 0, 0, 0
	for _, sb := range subbands {
		if sb.Archived {
			archived++
		}
		if sb.OnRemote {
			remote++
		}
		if sb.Archived || sb.OnRemote {
			available++
		}
	}
	n := len(subbands)
	return Status{
		Archived: Classify(archived, n),
		OnRemote: Classify(remote, n),
		Good:     n > 0 && available == n,
	}
}

// ObservationStatus derives an observation from its beams.
func ObservationStatus(beams []Status) Status {
	return Status{
		Archived: rollup(beams, func(s Status) models.TriState { return s.Archived }, len(beams)),
		OnRemote: rollup(beams, func(s Status) models.TriState { return s.OnRemote }, len(beams)),
	}
}

// FieldStatus derives a field from the beams pointed at it. The field is
// fully archived (or available) once quota beams are; it is done when either
// axis is complete. A non-positive quota falls back to the MSSS default.
func FieldStatus(beams []Status, quota int) Status {
	if quota <= 0 {
		quota = models.DefaultBeamsPerField
	}
	s := Status{
		Archived: rollup(beams, func(s Status) models.TriState { return s.Archived }, quota),
		OnRemote: rollup(beams, func(s Status) models.TriState { return s.OnRemote }, quota),
	}
	s.Done = s.Archived == models.StateAll || s.OnRemote == models.StateAll
	return s
}

// rollup is ALL when at least target children are ALL, SOME when any child
// is ALL or SOME and NONE otherwise. No children is always NONE.
func rollup(children []Status, axis func(Status) models.TriState, target int) models.TriState {
	if len(children) == 0 {
		return models.StateNone
	}
	all, some := 0, 0
	for _, c := range children {
		switch axis(c) {
		case models.StateAll:
			all++
			some++
		case models.StateSome:
			some++
		}
	}
	switch {
	case all >= target:
		return models.StateAll
	case some > 0:
		return models.StateSome
	default:
		return models.StateNone
	}
}
