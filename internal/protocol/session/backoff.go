package session

import (
	"math"
	"math/rand"
	"time"
)

// NextRetryDelay returns the wait after failed attempt N (1-based). A
// non-positive interval falls back to DefaultRetryInterval; a multiplier of
// 1 keeps the interval fixed.
func NextRetryDelay(p RetryPolicy, attempt int, rng *rand.Rand) time.Duration {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	if attempt <= 1 {
		return interval
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 1.0
	}
	delay := float64(interval) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxInterval > 0 && delay > float64(p.MaxInterval) {
		delay = float64(p.MaxInterval)
	}
	if p.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
