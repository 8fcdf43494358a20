package retry

import (
	"math"
	"math/rand"
	"time"
)

// jitterFraction spreads concurrent writers that hit the same lock apart.
const jitterFraction = 0.25

// Backoff returns how long a writer waits after its attempt-th failure on a
// locked database. The wait grows geometrically from InitialBackoff, is
// jittered by jitterFraction either way and never exceeds MaxBackoff. A
// writer past MaxRetries gets MaxBackoff; attempt 0 waits not at all.
func Backoff(attempt int, cfg Config) time.Duration {
	switch {
	case attempt <= 0:
		return 0
	case attempt > cfg.MaxRetries:
		return cfg.MaxBackoff
	}
	ceiling := float64(cfg.MaxBackoff)
	wait := math.Min(float64(cfg.InitialBackoff)*math.Pow(cfg.BackoffMultiplier, float64(attempt-1)), ceiling)
	wait *= 1 + jitterFraction*(2*rand.Float64()-1)
	return time.Duration(math.Max(0, math.Min(wait, ceiling)))
}
