package runs

import (
	"errors"
	"fmt"
)

// Template parametrises a survey scheduling pattern: calibrator scans at
// every CalibratorStride-th offset, target scans in between, and groups of
// target scans that must revisit the same fields.
type Template struct {
	Name             string `yaml:"name" json:"name"`
	Length           int    `yaml:"length" json:"length"`
	CalibratorStride int    `yaml:"calibrator_stride" json:"calibrator_stride"`
	TargetBeamCounts []int  `yaml:"target_beam_counts" json:"target_beam_counts"`
	GroupOffsets     []int  `yaml:"group_offsets" json:"group_offsets"`
	GroupStep        int    `yaml:"group_step" json:"group_step"`
	GroupBeams       int    `yaml:"group_beams" json:"group_beams"`
}

// Wide is the high-declination MSSS LBA pattern: 36 calibrator/target pairs
// visiting four target groups.
func Wide() Template {
	return Template{
		Name:             "wide",
		Length:           72,
		CalibratorStride: 2,
		TargetBeamCounts: []int{3, 4},
		GroupOffsets:     []int{1, 3, 5, 7},
		GroupStep:        8,
		GroupBeams:       3,
	}
}

// Narrow is the low-declination MSSS LBA pattern: 27 calibrator/target pairs
// visiting three target groups.
func Narrow() Template {
	return Template{
		Name:             "narrow",
		Length:           54,
		CalibratorStride: 2,
		TargetBeamCounts: []int{3, 4},
		GroupOffsets:     []int{1, 3, 5},
		GroupStep:        6,
		GroupBeams:       3,
	}
}

// DefaultTemplates returns the MSSS LBA templates in priority order.
func DefaultTemplates() []Template {
	return []Template{Wide(), Narrow()}
}

// Validate checks that the template describes a usable pattern.
func (t Template) Validate() error {
	if t.Name == "" {
		return errors.New("template name is required")
	}
	if t.Length <= 0 {
		return fmt.Errorf("template %s: length must be positive", t.Name)
	}
	if t.CalibratorStride <= 0 {
		return fmt.Errorf("template %s: calibrator stride must be positive", t.Name)
	}
	if len(t.TargetBeamCounts) == 0 {
		return fmt.Errorf("template %s: at least one target beam count is required", t.Name)
	}
	if len(t.GroupOffsets) > 0 && t.GroupStep <= 0 {
		return fmt.Errorf("template %s: group step must be positive", t.Name)
	}
	for _, off := range t.GroupOffsets {
		if off < 0 || off >= t.Length {
			return fmt.Errorf("template %s: group offset %d outside window", t.Name, off)
		}
		if t.isCalibratorOffset(off) {
			return fmt.Errorf("template %s: group offset %d is a calibrator slot", t.Name, off)
		}
	}
	if t.GroupBeams < 0 {
		return fmt.Errorf("template %s: group beams must not be negative", t.Name)
	}
	return nil
}

func (t Template) isCalibratorOffset(i int) bool {
	return i%t.CalibratorStride == 0
}

func (t Template) acceptsBeamCount(n int) bool {
	for _, c := range t.TargetBeamCounts {
		if c == n {
			return true
		}
	}
	return false
}

func (t Template) groupBeams() int {
	if t.GroupBeams == 0 {
		return 3
	}
	return t.GroupBeams
}

// ShortestLength returns the smallest Length among templates, or 0 when
// there are none.
func ShortestLength(templates []Template) int {
	shortest := 0
	for _, t := range templates {
		if shortest == 0 || t.Length < shortest {
			shortest = t.Length
		}
	}
	return shortest
}
