package admission

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxBuckets bounds the per-IP bucket map. When the map grows
// past this, stale buckets are reaped on the next Allow call, so
// sustained distinct-IP traffic cannot leak memory without bound.
const defaultMaxBuckets = 4096

// Limiter applies a capacity-1 token bucket per client IP key. Buckets
// are created lazily on first observation. A refill interval of zero
// disables limiting entirely: every Allow succeeds.
type Limiter struct {
	interval   time.Duration
	maxBuckets int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim     *rate.Limiter
	lastUse time.Time
}

// NewLimiter creates a Limiter admitting one request per key every
// seconds seconds. seconds == 0 yields a pass-through limiter.
func NewLimiter(seconds int) *Limiter {
	return &Limiter{
		interval:   time.Duration(seconds) * time.Second,
		maxBuckets: defaultMaxBuckets,
		buckets:    make(map[string]*bucket),
	}
}

// Allow reports whether a request under key is admitted now. Safe for
// concurrent use.
func (l *Limiter) Allow(key string) bool {
	if l.interval == 0 {
		return true
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) >= l.maxBuckets {
		l.reap(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(l.interval), 1)}
		l.buckets[key] = b
	}
	b.lastUse = now

	return b.lim.Allow()
}

// reap drops buckets idle for at least two refill intervals. A dropped
// bucket that reappears starts full again, which errs on the side of
// admitting, never over-throttling.
func (l *Limiter) reap(now time.Time) {
	stale := 2 * l.interval
	for k, b := range l.buckets {
		if now.Sub(b.lastUse) >= stale {
			delete(l.buckets, k)
		}
	}
}
