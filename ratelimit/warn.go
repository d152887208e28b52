// Package ratelimit throttles a repeated log line so a sustained condition
// (queue overflow, adapter disconnect storm) logs at a bounded rate instead
// of flooding the log output. This repurposes the rate-limiting concern the
// teacher's HTTP layer applies per-client, applying it instead per hot-path
// warning site.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Warner gates a keyed warning behind a token-bucket limiter so repeated
// occurrences of the same condition for the same key are logged at most at
// the configured rate. Warner keeps no count of suppressed occurrences.
type Warner struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewWarner creates a Warner allowing up to rps log lines per second (with
// burst allowance) for each distinct key.
func NewWarner(rps float64, burst int) *Warner {
	return &Warner{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a warning for key may be logged right now.
func (w *Warner) Allow(key string) bool {
	w.mu.Lock()
	limiter, ok := w.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(w.rps, w.burst)
		w.limiters[key] = limiter
	}
	w.mu.Unlock()
	return limiter.Allow()
}
