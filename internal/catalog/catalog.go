// Package catalog holds the named reference positions (fields and
// calibrators) of the surveys and answers nearest-neighbour queries against
// them.
//
// A Catalog is built once, typically from the fields table at the start of a
// pipeline run, and is read-only afterwards; it is safe for concurrent use.
package catalog

import (
	"fmt"
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// Entry is one named reference point.
type Entry struct {
	// ID is the stored field id, or 0 for entries that are not persisted.
	ID          int64
	Name        string
	Survey      string
	Description string
	Position    coord.Sphr // radians
	Calibrator  bool
}

// Filter restricts which entries a query may return. The zero Filter
// matches everything.
type Filter struct {
	Survey      string
	Calibrators bool // only calibrator entries
	Targets     bool // only non-calibrator entries
}

func (f Filter) accepts(e *Entry) bool {
	if f.Survey != "" && e.Survey != f.Survey {
		return false
	}
	if f.Calibrators && !e.Calibrator {
		return false
	}
	if f.Targets && e.Calibrator {
		return false
	}
	return true
}

// Match is the result of a successful nearest-neighbour query.
type Match struct {
	Entry    Entry
	Distance unit.Angle
}

// Catalog is an immutable set of entries.
type Catalog struct {
	entries []Entry
	vectors []coord.Cart
	index   map[string]int
}

// New builds a catalog. Names must be unique within a survey.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		vectors: make([]coord.Cart, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	copy(c.entries, entries)
	for i := range c.entries {
		e := &c.entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("entry %d: name is required", i)
		}
		key := indexKey(e.Survey, e.Name)
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("duplicate entry %q in survey %q", e.Name, e.Survey)
		}
		c.index[key] = i
		c.vectors[i] = unitVector(e.Position)
	}
	return c, nil
}

func indexKey(survey, name string) string {
	return survey + "\x00" + name
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Lookup returns the entry with the given survey and name.
func (c *Catalog) Lookup(survey, name string) (Entry, bool) {
	i, ok := c.index[indexKey(survey, name)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries returns a copy of all entries in load order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// NearestWithinRadius returns the entry accepted by f that lies closest to
// pos, provided it is no further than radius. Ties go to the entry loaded
// first. A miss is reported with ok == false and is not an error.
func (c *Catalog) NearestWithinRadius(pos coord.Sphr, radius unit.Angle, f Filter) (m Match, ok bool) {
	v := unitVector(pos)
	best := -1
	var bestDist unit.Angle
	for i := range c.entries {
		if !f.accepts(&c.entries[i]) {
			continue
		}
		d := angleBetween(&v, &c.vectors[i])
		// NaN distances from non-finite positions must never match.
		if !(d <= radius) {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Match{}, false
	}
	return Match{Entry: c.entries[best], Distance: bestDist}, true
}

// Separation returns the angular distance between two positions.
func Separation(a, b coord.Sphr) unit.Angle {
	va, vb := unitVector(a), unitVector(b)
	return angleBetween(&va, &vb)
}

func unitVector(p coord.Sphr) coord.Cart {
	var c coord.Cart
	c.FromSphr(&p)
	return c
}

// angleBetween uses atan2 of the cross and dot products, which stays
// accurate for the sub-degree separations that matter here.
func angleBetween(a, b *coord.Cart) unit.Angle {
	var x coord.Cart
	x.Cross(a, b)
	return unit.Angle(math.Atan2(math.Sqrt(x.Square()), a.Dot(b)))
}
