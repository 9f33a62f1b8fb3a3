package agent

import (
	"golang.org/x/time/rate"
)

const (
	defaultRateBurst     = 5
	defaultRatePerMinute = 60.0
)

// NewRateLimiter returns a token bucket for throttling chat model calls.
// Callers Wait on it; a throttled call is delayed, never retried.
func NewRateLimiter(maxBurst int, ratePerMinute float64) *rate.Limiter {
	if maxBurst <= 0 {
		maxBurst = defaultRateBurst
	}
	if ratePerMinute <= 0 {
		ratePerMinute = defaultRatePerMinute
	}
	return rate.NewLimiter(rate.Limit(ratePerMinute/60.0), maxBurst)
}
