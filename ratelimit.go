package contract

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware. Rate is in requests
// per second and Burst is the bucket size.
type RateLimitConfig struct {
	Rate  float64
	Burst int

	// KeyFunc picks the bucket of a request. It defaults to the client IP.
	KeyFunc func(r *http.Request) string
	// OnLimit writes the rejection. Retry-After is already set when it
	// runs, unless Rate is not positive. It defaults to a 429 problem
	// response.
	OnLimit func(w http.ResponseWriter, r *http.Request)

	// Idle buckets are dropped after MaxIdle (default 5m), checked at most
	// every CleanupInterval (default 1m).
	CleanupInterval time.Duration
	MaxIdle         time.Duration
}

// RateLimit returns middleware that gives every key its own token bucket.
// Rejected requests never reach the endpoint, so their inputs are not
// decoded.
func RateLimit(cfg RateLimitConfig) Middleware {
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = clientIP
	}
	onLimit := cfg.OnLimit
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request) {
			writeProblem(w, newProblem(http.StatusTooManyRequests, "rate limit exceeded"))
		}
	}
	pool := &limiterPool{
		limit:    rate.Limit(cfg.Rate),
		burst:    cfg.Burst,
		interval: orDefault(cfg.CleanupInterval, time.Minute),
		maxIdle:  orDefault(cfg.MaxIdle, 5*time.Minute),
		entries:  make(map[string]*limiterEntry),
	}
	retryAfter := retryAfterSeconds(cfg.Rate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.get(keyOf(r), time.Now()).Allow() {
				if retryAfter != "" {
					w.Header().Set("Retry-After", retryAfter)
				}
				onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds is the time one token takes to refill, rounded up to
// whole seconds. A rate that never refills has no retry time.
func retryAfterSeconds(perSecond float64) string {
	if perSecond <= 0 || math.IsNaN(perSecond) {
		return ""
	}
	return strconv.FormatFloat(max(1, math.Ceil(1/perSecond)), 'f', 0, 64)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// limiterPool holds one limiter per key and prunes idle ones lazily.
type limiterPool struct {
	limit    rate.Limit
	burst    int
	interval time.Duration
	maxIdle  time.Duration

	mu          sync.Mutex
	entries     map[string]*limiterEntry
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (p *limiterPool) get(key string, now time.Time) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.lastCleanup) >= p.interval {
		for k, e := range p.entries {
			if now.Sub(e.lastSeen) > p.maxIdle {
				delete(p.entries, k)
			}
		}
		p.lastCleanup = now
	}

	e, ok := p.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}
