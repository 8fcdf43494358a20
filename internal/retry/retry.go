// Package retry re-runs database writes that fail because SQLite is busy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrExhausted is returned, wrapping the last error, when every attempt of
// a transient failure has been used.
var ErrExhausted = errors.New("retries exhausted")

var transientMarkers = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"sqlite_locked",
}

// IsTransient reports whether err is a lock conflict worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// sleep is replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds, fails permanently or the policy runs out.
// op names the operation in log lines.
func Do(ctx context.Context, cfg Config, op string, fn func(ctx context.Context) error) error {
	cfg = applyDefaults(cfg)
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt > cfg.MaxRetries {
			return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, attempt, err)
		}
		wait := Backoff(attempt, cfg)
		log.Printf("%s: transient error (attempt %d/%d), retrying in %v: %v", op, attempt, cfg.MaxRetries, wait, err)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}
