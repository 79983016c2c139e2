package session

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestNextRetryDelayFixedInterval(t *testing.T) {
	p := RetryPolicy{Enabled: true, Interval: 5 * time.Second, Multiplier: 1.0}
	for attempt := 1; attempt <= 5; attempt++ {
		if got := NextRetryDelay(p, attempt, nil); got != 5*time.Second {
			t.Fatalf("attempt%d got=%v", attempt, got)
		}
	}
}

func TestNextRetryDelayDeterministicNoJitter(t *testing.T) {
	p := RetryPolicy{
		Enabled:     true,
		Interval:    250 * time.Millisecond,
		Multiplier:  2.0,
		MaxInterval: 5 * time.Second,
	}
	if got := NextRetryDelay(p, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextRetryDelay(p, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextRetryDelay(p, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextRetryDelay(p, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextRetryDelayNonPositiveIntervalFallsBack(t *testing.T) {
	p := RetryPolicy{Enabled: true, Interval: -time.Second}
	if got := NextRetryDelay(p, 1, nil); got != DefaultRetryInterval {
		t.Fatalf("got=%v want=%v", got, DefaultRetryInterval)
	}
}

func TestNextRetryDelayJitterRange(t *testing.T) {
	p := RetryPolicy{
		Enabled:     true,
		Interval:    250 * time.Millisecond,
		Multiplier:  2.0,
		MaxInterval: 5 * time.Second,
		Jitter:      true,
	}
	rng := rand.New(rand.NewSource(7))
	got := NextRetryDelay(p, 2, rng)
	if got < 250*time.Millisecond || got > 750*time.Millisecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestShouldRetry(t *testing.T) {
	if (RetryPolicy{}).ShouldRetry(1) {
		t.Fatalf("disabled policy must not retry")
	}
	unbounded := RetryPolicy{Enabled: true}
	if !unbounded.ShouldRetry(1000) {
		t.Fatalf("unbounded policy should keep retrying")
	}
	bounded := RetryPolicy{Enabled: true, MaxAttempts: 3}
	if !bounded.ShouldRetry(2) || bounded.ShouldRetry(3) {
		t.Fatalf("bounded policy should stop after 3 attempts")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.ReadTimeout = -time.Second
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.Retry.MaxAttempts = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidRetryPolicy) {
		t.Fatalf("expected ErrInvalidRetryPolicy, got %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.ConnectTimeout != 5*time.Second || cfg.Retry.Multiplier != 1.0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
