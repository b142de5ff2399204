package ai

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused caller limiter is kept
const idleLimiterTTL = 10 * time.Minute

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each caller at most perMinute calls per minute
type RateLimiter struct {
	perMinute int
	now       func() time.Time

	mu      sync.Mutex
	callers map[string]*callerLimiter
}

// NewRateLimiter creates a limiter granting perMinute calls per caller per minute
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		perMinute: perMinute,
		now:       time.Now,
		callers:   make(map[string]*callerLimiter),
	}
}

// Allow consumes one call for caller. When the caller is over the limit it
// returns false and how long until the next call would be allowed.
func (r *RateLimiter) Allow(caller string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	c, ok := r.callers[caller]
	if !ok {
		c = &callerLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMinute)), r.perMinute),
		}
		r.callers[caller] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (r *RateLimiter) prune(now time.Time) {
	for id, c := range r.callers {
		if now.Sub(c.lastSeen) > idleLimiterTTL {
			delete(r.callers, id)
		}
	}
}
