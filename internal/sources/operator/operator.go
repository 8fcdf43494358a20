// Package operator parses the plain text lists operators hand to the
// maintenance commands: archive ranges, per-node data logs and station
// tables.
package operator

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lofar-msss/obsdb/internal/models"
	"github.com/lofar-msss/obsdb/internal/repositories"
)

// SizeUnit converts the sizes of node logs, given in KiB, to bytes.
const SizeUnit = 1024

// ArchiveRange archives the observations L<Lower> to L<Upper> inclusive at
// Site.
type ArchiveRange struct {
	Lower int
	Upper int
	Site  string
}

// ObsIDs expands the range into obsids.
func (r ArchiveRange) ObsIDs() []string {
	if r.Upper < r.Lower {
		return nil
	}
	ids := make([]string, 0, r.Upper-r.Lower+1)
	for n := r.Lower; n <= r.Upper; n++ {
		ids = append(ids, "L"+strconv.Itoa(n))
	}
	return ids
}

// ParseArchiveRanges reads "<lower> <upper> <site>" lines.
func ParseArchiveRanges(r io.Reader) ([]ArchiveRange, error) {
	var out []ArchiveRange
	err := eachLine(r, func(n int, text string) error {
		parts := strings.Fields(text)
		if len(parts) < 3 {
			return fmt.Errorf("line %d: expected lower, upper and site", n)
		}
		lo, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("line %d: lower bound: %w", n, err)
		}
		hi, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("line %d: upper bound: %w", n, err)
		}
		if hi < lo {
			return fmt.Errorf("line %d: empty range %d-%d", n, lo, hi)
		}
		out = append(out, ArchiveRange{Lower: lo, Upper: hi, Site: parts[2]})
		return nil
	})
	return out, err
}

// ParseObsIDList reads a long-term archive export: a header line followed by
// one numeric obsid per line.
func ParseObsIDList(r io.Reader) ([]string, error) {
	var ids []string
	header := true
	err := eachLine(r, func(n int, text string) error {
		if header {
			header = false
			return nil
		}
		num, err := strconv.Atoi(strings.TrimPrefix(text, "L"))
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		ids = append(ids, "L"+strconv.Itoa(num))
		return nil
	})
	return ids, err
}

// Hostname derives the node name from a log file name "<host>.log".
func Hostname(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseNodeLog reads "<size> <path>" lines written on host, where path
// follows /data/L<obs>/L<obs>_SAP<beam>_SB<nnn>_uv.MS. Locations are grouped
// by obsid and numbered by subband record.
func ParseNodeLog(host string, r io.Reader) (map[string][]repositories.Location, error) {
	out := make(map[string][]repositories.Location)
	err := eachLine(r, func(n int, text string) error {
		parts := strings.Fields(text)
		if len(parts) != 2 {
			return fmt.Errorf("line %d: expected size and path", n)
		}
		size, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: size: %w", n, err)
		}
		obsID, number, err := ParseDataPath(parts[1])
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		out[obsID] = append(out[obsID], repositories.Location{
			Number:   number,
			Hostname: host,
			Path:     parts[1],
			Size:     size * SizeUnit,
		})
		return nil
	})
	return out, err
}

// ParseDataPath extracts the obsid and subband record number from an MSSS
// measurement set path.
func ParseDataPath(path string) (obsID string, number int, err error) {
	dirs := strings.Split(path, "/")
	if len(dirs) < 3 || dirs[2] == "" {
		return "", 0, fmt.Errorf("path %q: no observation directory", path)
	}
	parts := strings.Split(path, "_")
	if len(parts) < 3 || len(parts[2]) < 3 {
		return "", 0, fmt.Errorf("path %q: no subband", path)
	}
	sb := parts[2]
	number, err = strconv.Atoi(sb[len(sb)-3:])
	if err != nil {
		return "", 0, fmt.Errorf("path %q: subband: %w", path, err)
	}
	return dirs[2], number, nil
}

// MergeLocations folds per-host logs into one map keyed by obsid, with the
// obsids sorted.
func MergeLocations(logs ...map[string][]repositories.Location) (map[string][]repositories.Location, []string) {
	merged := make(map[string][]repositories.Location)
	for _, l := range logs {
		for id, locs := range l {
			merged[id] = append(merged[id], locs...)
		}
	}
	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return merged, ids
}

// ParseStations reads "<name> <idnumber> <longitude> <latitude> <altitude>
// [description...]" lines.
func ParseStations(r io.Reader) ([]*models.Station, error) {
	var out []*models.Station
	err := eachLine(r, func(n int, text string) error {
		parts := strings.Fields(text)
		if len(parts) < 5 {
			return fmt.Errorf("line %d: expected name, id, longitude, latitude and altitude", n)
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("line %d: id: %w", n, err)
		}
		var coords [3]float64
		for i := range coords {
			if coords[i], err = strconv.ParseFloat(parts[2+i], 64); err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
		}
		out = append(out, &models.Station{
			Name:        parts[0],
			IDNumber:    id,
			Description: strings.Join(parts[5:], " "),
			Longitude:   coords[0],
			Latitude:    coords[1],
			Altitude:    coords[2],
		})
		return nil
	})
	return out, err
}

// eachLine calls fn for every non-blank line that is not a '#' comment.
func eachLine(r io.Reader, fn func(n int, text string) error) error {
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := fn(n, text); err != nil {
			return err
		}
	}
	return scanner.Err()
}
