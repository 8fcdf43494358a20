package runs

import (
	"github.com/google/uuid"

	"github.com/lofar-msss/obsdb/internal/descriptor"
)

// Run is a validated window. Its members are owned by the run: once
// allocated they are no longer available to any other window.
type Run struct {
	ID         string
	Template   string
	Calibrator string
	Start      int // index of the first member in the scanned sequence
	Members    []*descriptor.Descriptor
}

// Allocation is the outcome of one scan.
type Allocation struct {
	Runs []Run
	// Unclaimed holds, in order, the descriptors that are not yet part of
	// any run.
	Unclaimed []*descriptor.Descriptor
}

// Claimed returns the total number of descriptors moved into runs.
func (a Allocation) Claimed() int {
	n := 0
	for _, r := range a.Runs {
		n += len(r.Members)
	}
	return n
}

// Allocator scans time-ordered sequences for template matches.
type Allocator struct {
	templates []Template
	match     func(window []*descriptor.Descriptor, t Template) (string, bool)
}

// NewAllocator returns an allocator trying templates in the given order.
func NewAllocator(r Resolver, templates []Template) *Allocator {
	m := NewMatcher(r)
	return &Allocator{templates: templates, match: m.check}
}

// Allocate scans seq, which must be sorted by start time, and claims every
// matching window. See Allocator.Allocate.
func Allocate(seq []*descriptor.Descriptor, templates []Template, r Resolver) Allocation {
	return NewAllocator(r, templates).Allocate(seq)
}

// Allocate scans seq left to right. At each unclaimed position the
// templates are tried in order and the first match claims its window;
// accepted runs are never revisited. seq itself is not modified.
func (a *Allocator) Allocate(seq []*descriptor.Descriptor) Allocation {
	pool := make([]*descriptor.Descriptor, len(seq))
	copy(pool, seq)

	var out Allocation
	for i := range pool {
		if pool[i] == nil {
			continue
		}
		for _, t := range a.templates {
			if t.Length <= 0 || i+t.Length > len(pool) {
				continue
			}
			calibrator, ok := a.match(pool[i:i+t.Length], t)
			if !ok {
				continue
			}
			out.Runs = append(out.Runs, Run{
				ID:         uuid.NewString(),
				Template:   t.Name,
				Calibrator: calibrator,
				Start:      i,
				Members:    take(pool[i : i+t.Length]),
			})
			break
		}
	}

	for _, d := range pool {
		if d != nil {
			out.Unclaimed = append(out.Unclaimed, d)
		}
	}
	return out
}

// take moves the descriptors out of the pool window.
func take(window []*descriptor.Descriptor) []*descriptor.Descriptor {
	members := make([]*descriptor.Descriptor, len(window))
	copy(members, window)
	for i := range window {
		window[i] = nil
	}
	return members
}
