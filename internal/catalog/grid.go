package catalog

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// ParseGrid reads a grid-point file. Each non-blank line is
//
//	<name> <ra hh:mm:ss.s> <dec dd:mm:ss.s | dd.mm.ss.s> [description...]
//
// Lines starting with '#' are ignored. Every entry is tagged with survey and
// the calibrator flag.
func ParseGrid(r io.Reader, survey string, calibrator bool) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.Fields(text)
		if len(parts) < 3 {
			return nil, fmt.Errorf("line %d: expected name, ra and dec", line)
		}
		ra, err := ParseRA(parts[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		dec, err := ParseDec(parts[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, Entry{
			Name:        parts[0],
			Survey:      survey,
			Description: strings.Join(parts[3:], " "),
			Position:    coord.Sphr{Lon: ra.Angle(), Lat: dec},
			Calibrator:  calibrator,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	return entries, nil
}

// ParseRA parses a sexagesimal right ascension "hh:mm:ss.s".
func ParseRA(s string) (unit.RA, error) {
	_, h, m, sec, err := splitSexa(s, false)
	if err != nil {
		return 0, fmt.Errorf("ra %q: %w", s, err)
	}
	if h >= 24 || m >= 60 || sec >= 60 {
		return 0, fmt.Errorf("ra %q: out of range", s)
	}
	return unit.NewRA(h, m, sec), nil
}

// ParseDec parses a sexagesimal declination "[+-]dd:mm:ss.s" or the
// dotted form "[+-]dd.mm.ss.s".
func ParseDec(s string) (unit.Angle, error) {
	neg, d, m, sec, err := splitSexa(s, true)
	if err != nil {
		return 0, fmt.Errorf("dec %q: %w", s, err)
	}
	if d > 90 || m >= 60 || sec >= 60 {
		return 0, fmt.Errorf("dec %q: out of range", s)
	}
	var sign byte
	if neg {
		sign = '-'
	}
	a := unit.NewAngle(sign, d, m, sec)
	if math.Abs(a.Rad()) > math.Pi/2 {
		return 0, fmt.Errorf("dec %q: out of range", s)
	}
	return a, nil
}

func splitSexa(s string, dotted bool) (neg bool, a, b int, c float64, err error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	var parts []string
	if strings.Contains(s, ":") || !dotted {
		parts = strings.Split(s, ":")
	} else {
		parts = strings.SplitN(s, ".", 3)
	}
	if len(parts) != 3 {
		return false, 0, 0, 0, fmt.Errorf("expected three sexagesimal components")
	}
	if a, err = strconv.Atoi(parts[0]); err != nil || a < 0 {
		return false, 0, 0, 0, fmt.Errorf("bad leading component %q", parts[0])
	}
	if b, err = strconv.Atoi(parts[1]); err != nil || b < 0 {
		return false, 0, 0, 0, fmt.Errorf("bad minutes %q", parts[1])
	}
	if c, err = strconv.ParseFloat(parts[2], 64); err != nil || !(c >= 0) || math.IsInf(c, 0) {
		return false, 0, 0, 0, fmt.Errorf("bad seconds %q", parts[2])
	}
	return neg, a, b, c, nil
}
