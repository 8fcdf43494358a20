// Package runs detects survey runs: contiguous, time-ordered blocks of
// observations that follow a scheduling template.
package runs

import (
	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"

	"github.com/lofar-msss/obsdb/internal/catalog"
	"github.com/lofar-msss/obsdb/internal/descriptor"
)

// Resolver identifies the calibrator a descriptor observed.
type Resolver interface {
	Calibrator(d *descriptor.Descriptor) (name string, ok bool)
}

// CatalogResolver resolves single-beam descriptors against the calibrators
// of one survey.
type CatalogResolver struct {
	Catalog *catalog.Catalog
	Survey  string
	Radius  unit.Angle
}

// Calibrator returns the nearest calibrator within Radius.
func (r CatalogResolver) Calibrator(d *descriptor.Descriptor) (string, bool) {
	if d.BeamCount() != 1 {
		return "", false
	}
	m, ok := r.Catalog.NearestWithinRadius(d.Positions[0], r.Radius, catalog.Filter{
		Survey:      r.Survey,
		Calibrators: true,
	})
	if !ok {
		return "", false
	}
	return m.Entry.Name, true
}

type resolution struct {
	name string
	ok   bool
}

// Matcher validates candidate windows. It memoises calibrator resolutions,
// so one Matcher should serve a single catalog snapshot.
type Matcher struct {
	resolver Resolver
	cache    map[*descriptor.Descriptor]resolution
}

// NewMatcher returns a Matcher resolving calibrators through r.
func NewMatcher(r Resolver) *Matcher {
	return &Matcher{resolver: r, cache: make(map[*descriptor.Descriptor]resolution)}
}

// Match reports whether window satisfies t. A nil element marks a
// descriptor already claimed by another run.
func (m *Matcher) Match(window []*descriptor.Descriptor, t Template) bool {
	_, ok := m.check(window, t)
	return ok
}

func (m *Matcher) calibrator(d *descriptor.Descriptor) (string, bool) {
	if r, ok := m.cache[d]; ok {
		return r.name, r.ok
	}
	name, ok := m.resolver.Calibrator(d)
	m.cache[d] = resolution{name: name, ok: ok}
	return name, ok
}

// check returns the calibrator shared by the window when it matches.
func (m *Matcher) check(window []*descriptor.Descriptor, t Template) (string, bool) {
	if len(window) != t.Length || t.CalibratorStride <= 0 {
		return "", false
	}
	if len(t.GroupOffsets) > 0 && t.GroupStep <= 0 {
		return "", false
	}

	// No reuse, and every member must be orderable.
	for _, d := range window {
		if d == nil || !d.HasStart() {
			return "", false
		}
	}

	// One calibrator for all calibrator slots.
	var calibrator string
	for i := 0; i < len(window); i += t.CalibratorStride {
		name, ok := m.calibrator(window[i])
		if !ok {
			return "", false
		}
		if i == 0 {
			calibrator = name
		} else if name != calibrator {
			return "", false
		}
	}

	// One accepted beam count across target slots.
	beams := -1
	for i, d := range window {
		if t.isCalibratorOffset(i) {
			continue
		}
		n := d.BeamCount()
		if !t.acceptsBeamCount(n) {
			return "", false
		}
		if beams < 0 {
			beams = n
		} else if n != beams {
			return "", false
		}
	}

	// Each group revisits the same pointing in each of its first beams.
	for _, off := range t.GroupOffsets {
		for beam := 0; beam < t.groupBeams(); beam++ {
			var first coord.Sphr
			seen := false
			for i := off; i < len(window); i += t.GroupStep {
				p, ok := window[i].Position(beam)
				if !ok {
					return "", false
				}
				if !seen {
					first, seen = p, true
				} else if p != first {
					return "", false
				}
			}
		}
	}

	return calibrator, true
}
