package session

import (
	"errors"
	"fmt"
	"time"
)

const DefaultRetryInterval = 10 * time.Second

var (
	ErrInvalidRetryPolicy = errors.New("session: invalid retry policy")
	ErrInvalidTimeout     = errors.New("session: invalid timeout")
)

// RetryPolicy controls what happens when bind or connect fails. With
// Enabled unset the first failure is final.
type RetryPolicy struct {
	Enabled     bool
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	Jitter      bool
	MaxAttempts int
}

// Config defines connection reliability defaults.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Retry          RetryPolicy
}

// DefaultConfig leaves reads and writes unbounded and retries disabled.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		Retry: RetryPolicy{
			Enabled:    false,
			Interval:   5 * time.Second,
			Multiplier: 1.0,
		},
	}
}

// WithDefaults fills zero-valued knobs that have a sensible default.
func (c Config) WithDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 1.0
	}
	return c
}

func (c Config) Validate() error {
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: connect timeout %v", ErrInvalidTimeout, c.ConnectTimeout)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("%w: read timeout %v", ErrInvalidTimeout, c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: write timeout %v", ErrInvalidTimeout, c.WriteTimeout)
	}
	return c.Retry.Validate()
}

func (p RetryPolicy) Validate() error {
	if p.Multiplier < 0 {
		return fmt.Errorf("%w: multiplier %v", ErrInvalidRetryPolicy, p.Multiplier)
	}
	if p.MaxInterval < 0 {
		return fmt.Errorf("%w: max interval %v", ErrInvalidRetryPolicy, p.MaxInterval)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("%w: max attempts %d", ErrInvalidRetryPolicy, p.MaxAttempts)
	}
	return nil
}

// ShouldRetry reports whether another attempt follows failed attempt N
// (1-based).
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	if !p.Enabled {
		return false
	}
	if p.MaxAttempts <= 0 {
		return true
	}
	return attempt < p.MaxAttempts
}
