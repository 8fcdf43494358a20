package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &waits
}

func TestBackoffBounds(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, BackoffMultiplier: 2, MaxRetries: 5}

	for attempt := 1; attempt <= 5; attempt++ {
		d := Backoff(attempt, cfg)
		if d <= 0 {
			t.Fatalf("backoff should be positive")
		}
		if d > cfg.MaxBackoff {
			t.Fatalf("backoff should cap at max")
		}
	}

	if d := Backoff(10, cfg); d != cfg.MaxBackoff {
		t.Fatalf("expected max backoff when attempts exceed max retries")
	}
	if d := Backoff(0, cfg); d != 0 {
		t.Fatalf("expected no backoff before the first attempt")
	}
}

func TestBackoffJitterWindow(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, BackoffMultiplier: 2, MaxRetries: 5}
	for i := 0; i < 100; i++ {
		if d := Backoff(2, cfg); d < 1500*time.Millisecond || d > 2500*time.Millisecond {
			t.Fatalf("attempt 2: expected 2s +/- 25%%, got %v", d)
		}
		if d := Backoff(5, cfg); d < 7500*time.Millisecond || d > cfg.MaxBackoff {
			t.Fatalf("attempt 5: expected capped wait in [7.5s, 10s], got %v", d)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(errors.New("sqlite: step: database is locked (5) (SQLITE_BUSY)")) {
		t.Fatalf("expected busy error to be transient")
	}
	if IsTransient(errors.New("UNIQUE constraint failed: beams.obsid, beams.number")) {
		t.Fatalf("expected constraint error to be permanent")
	}
	if IsTransient(nil) || IsTransient(context.Canceled) {
		t.Fatalf("expected nil and cancellation to be permanent")
	}
}

func TestDoRetriesTransient(t *testing.T) {
	waits := noSleep(t)
	calls := 0
	err := Do(context.Background(), Config{MaxRetries: 3}, "create_run", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || len(*waits) != 2 {
		t.Fatalf("expected 3 calls and 2 waits, got %d and %d", calls, len(*waits))
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	noSleep(t)
	calls := 0
	boom := errors.New("no such table: beams")
	err := Do(context.Background(), Config{}, "create_run", func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected a single call returning the error, got %d, %v", calls, err)
	}
}

func TestDoExhausts(t *testing.T) {
	noSleep(t)
	calls := 0
	busy := errors.New("database is locked")
	err := Do(context.Background(), Config{MaxRetries: 2}, "bulk_update", func(context.Context) error {
		calls++
		return busy
	})
	if !errors.Is(err, ErrExhausted) || !errors.Is(err, busy) {
		t.Fatalf("expected exhausted error wrapping the cause, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoHonoursContext(t *testing.T) {
	noSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Config{}, "status", func(context.Context) error {
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestLoadPolicies(t *testing.T) {
	yamlData := []byte(`retry:
  create_run:
    max_retries: 8
    initial_backoff: 250ms
    max_backoff: 10s
    backoff_multiplier: 3
  bulk_update:
    max_retries: 2
`)

	policies, err := LoadPolicies(yamlData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	create, err := policies.Get(OpCreateRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if create.MaxRetries != 8 || create.InitialBackoff != 250*time.Millisecond || create.BackoffMultiplier != 3 {
		t.Fatalf("unexpected create_run policy %+v", create)
	}

	bulk := policies.For(OpBulkUpdate)
	if bulk.MaxRetries != 2 || bulk.MaxBackoff != DefaultConfig().MaxBackoff {
		t.Fatalf("expected defaults to fill bulk_update, got %+v", bulk)
	}

	if _, err := policies.Get(OpStatus); err == nil {
		t.Fatalf("expected error for missing policy")
	}
	if got := policies.For(OpStatus); got != DefaultConfig() {
		t.Fatalf("expected default policy, got %+v", got)
	}
}
