package status

import (
	"context"
	"fmt"
	"log"
)

// Kind identifies the level of a hierarchy node.
type Kind int

const (
	KindBeam Kind = iota
	KindObservation
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindBeam:
		return "beam"
	case KindObservation:
		return "observation"
	case KindField:
		return "field"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node references a beam, observation or field. Beams and fields are keyed
// by ID, observations by ObsID.
type Node struct {
	Kind  Kind
	ID    int64
	ObsID string
}

func BeamNode(id int64) Node { return Node{Kind: KindBeam, ID: id} }

func ObservationNode(obsID string) Node { return Node{Kind: KindObservation, ObsID: obsID} }

func FieldNode(id int64) Node { return Node{Kind: KindField, ID: id} }

func (n Node) String() string {
	if n.Kind == KindObservation {
		return fmt.Sprintf("observation %s", n.ObsID)
	}
	return fmt.Sprintf("%s %d", n.Kind, n.ID)
}

// BeamSnapshot is a beam as currently stored, with its parents and leaves.
type BeamSnapshot struct {
	ObsID    string
	FieldID  int64
	Current  Status
	Subbands []Leaf
}

// Store reads the current children of a node and writes derived states.
type Store interface {
	Beam(ctx context.Context, id int64) (BeamSnapshot, error)
	ObservationBeams(ctx context.Context, obsID string) ([]Status, error)
	// FieldBeams returns the beams pointed at the field and the beam quota
	// of its survey.
	FieldBeams(ctx context.Context, fieldID int64) ([]Status, int, error)
	UpdateStatus(ctx context.Context, n Node, s Status) error
}

// Aggregator recomputes derived states bottom-up.
//
// A leaf mutation must be followed by RecomputeBeam on the owning beam; a
// new beam must be announced with BeamCreated. Fields never cascade further.
type Aggregator struct {
	store Store
}

// NewAggregator returns an Aggregator over store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// RecomputeBeam recomputes a beam from its subbands and, if its state
// changed, its observation and field. It reports whether the beam changed.
func (a *Aggregator) RecomputeBeam(ctx context.Context, beamID int64) (bool, error) {
	snap, next, err := a.recomputeBeam(ctx, beamID)
	if err != nil {
		return false, err
	}
	if next == snap.Current {
		return false, nil
	}
	return true, a.cascade(ctx, snap)
}

// BeamCreated computes the state of a newly stored beam and always updates
// its observation and field.
func (a *Aggregator) BeamCreated(ctx context.Context, beamID int64) error {
	snap, _, err := a.recomputeBeam(ctx, beamID)
	if err != nil {
		return err
	}
	return a.cascade(ctx, snap)
}

// RecomputeBeams recomputes every beam in ids and then each affected
// observation and field once.
func (a *Aggregator) RecomputeBeams(ctx context.Context, ids []int64) (int, error) {
	obs := make(map[string]bool)
	fields := make(map[int64]bool)
	var obsOrder []string
	var fieldOrder []int64

	changed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		snap, next, err := a.recomputeBeam(ctx, id)
		if err != nil {
			return changed, err
		}
		if next == snap.Current {
			continue
		}
		changed++
		if !obs[snap.ObsID] {
			obs[snap.ObsID] = true
			obsOrder = append(obsOrder, snap.ObsID)
		}
		if !fields[snap.FieldID] {
			fields[snap.FieldID] = true
			fieldOrder = append(fieldOrder, snap.FieldID)
		}
	}

	for _, o := range obsOrder {
		if _, err := a.RecomputeObservation(ctx, o); err != nil {
			return changed, err
		}
	}
	for _, f := range fieldOrder {
		if _, err := a.RecomputeField(ctx, f); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// RecomputeObservation derives an observation from its current beams.
func (a *Aggregator) RecomputeObservation(ctx context.Context, obsID string) (Status, error) {
	beams, err := a.store.ObservationBeams(ctx, obsID)
	if err != nil {
		return Status{}, fmt.Errorf("load beams of observation %s: %w", obsID, err)
	}
	s := ObservationStatus(beams)
	if err := a.store.UpdateStatus(ctx, ObservationNode(obsID), s); err != nil {
		return Status{}, fmt.Errorf("update observation %s: %w", obsID, err)
	}
	return s, nil
}

// RecomputeField derives a field from its current beams and survey quota.
func (a *Aggregator) RecomputeField(ctx context.Context, fieldID int64) (Status, error) {
	beams, quota, err := a.store.FieldBeams(ctx, fieldID)
	if err != nil {
		return Status{}, fmt.Errorf("load beams of field %d: %w", fieldID, err)
	}
	s := FieldStatus(beams, quota)
	if err := a.store.UpdateStatus(ctx, FieldNode(fieldID), s); err != nil {
		return Status{}, fmt.Errorf("update field %d: %w", fieldID, err)
	}
	return s, nil
}

func (a *Aggregator) recomputeBeam(ctx context.Context, beamID int64) (BeamSnapshot, Status, error) {
	snap, err := a.store.Beam(ctx, beamID)
	if err != nil {
		return BeamSnapshot{}, Status{}, fmt.Errorf("load beam %d: %w", beamID, err)
	}
	next := BeamStatus(snap.Subbands)
	if err := a.store.UpdateStatus(ctx, BeamNode(beamID), next); err != nil {
		return BeamSnapshot{}, Status{}, fmt.Errorf("update beam %d: %w", beamID, err)
	}
	if next != snap.Current {
		log.Printf("beam %d: %s -> %s", beamID, snap.Current, next)
	}
	return snap, next, nil
}

func (a *Aggregator) cascade(ctx context.Context, snap BeamSnapshot) error {
	if _, err := a.RecomputeObservation(ctx, snap.ObsID); err != nil {
		return err
	}
	_, err := a.RecomputeField(ctx, snap.FieldID)
	return err
}
