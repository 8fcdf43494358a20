package descriptor

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIntVector expands a bracketed integer list such as "[0..3,7,2*9]"
// into [0 1 2 3 7 9 9]. Ranges are inclusive and "n*v" repeats v n times.
func ParseIntVector(s string) ([]int, error) {
	out := []int{}
	for _, item := range vectorItems(s) {
		switch {
		case strings.Contains(item, ".."):
			lo, hi, ok := strings.Cut(item, "..")
			a, errA := strconv.Atoi(strings.TrimSpace(lo))
			b, errB := strconv.Atoi(strings.TrimSpace(hi))
			if !ok || errA != nil || errB != nil || b < a {
				return nil, fmt.Errorf("bad range %q", item)
			}
			for n := a; n <= b; n++ {
				out = append(out, n)
			}
		case strings.Contains(item, "*"):
			cnt, val, _ := strings.Cut(item, "*")
			n, errN := strconv.Atoi(strings.TrimSpace(cnt))
			v, errV := strconv.Atoi(strings.TrimSpace(val))
			if errN != nil || errV != nil || n < 0 {
				return nil, fmt.Errorf("bad repetition %q", item)
			}
			for i := 0; i < n; i++ {
				out = append(out, v)
			}
		default:
			n, err := strconv.Atoi(item)
			if err != nil {
				return nil, fmt.Errorf("bad integer %q", item)
			}
			out = append(out, n)
		}
	}
	return out, nil
}

// ParseStringVector splits a bracketed list such as "[CS001,CS002]".
func ParseStringVector(s string) []string {
	return vectorItems(s)
}

func vectorItems(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	var items []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
