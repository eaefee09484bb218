package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of a quota check for one request.
type Result struct {
	Allowed    bool
	Limit      int           // requests per window
	Remaining  int           // requests left in the current window
	RetryAfter time.Duration // how long to wait before retrying, 0 if allowed
}

// Limiter tracks one token bucket per tenant. Buckets are created on first
// use and swept once they have been idle long enough to refill completely.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	window  time.Duration
	stop    chan struct{}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a limiter allowing requests tokens per window, with
// burst capacity on top. Call Close to stop the sweep goroutine.
func NewLimiter(requests int, window time.Duration, burst int) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(float64(requests) / window.Seconds()),
		burst:   burst,
		window:  window,
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow consumes one token from the tenant's bucket.
func (l *Limiter) Allow(tenant string) Result {
	l.mu.Lock()
	b, ok := l.buckets[tenant]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[tenant] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	res := Result{
		Limit:   int(float64(l.rate) * l.window.Seconds()),
		Allowed: b.limiter.Allow(),
	}
	res.Remaining = max(int(b.limiter.Tokens()), 0)
	if !res.Allowed {
		// Wait for at least one token to refill.
		res.RetryAfter = max(time.Duration(float64(time.Second)/float64(l.rate)), time.Second)
	}
	return res
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets that are idle and fully refilled.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	idle := time.Now().Add(-10 * time.Minute)
	for tenant, b := range l.buckets {
		if b.lastSeen.Before(idle) && b.limiter.Tokens() >= float64(l.burst) {
			delete(l.buckets, tenant)
		}
	}
}

// Close stops the sweep goroutine.
func (l *Limiter) Close() {
	close(l.stop)
}
