package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/cache"
)

// Limiter consumes one request from a bucket.
// *cache.Cache and *LocalLimiter implement it.
type Limiter interface {
	CheckUserRateLimit(ctx context.Context, userID string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Enabled bool
	RPS     int
	Burst   int
}

// RateLimitUser returns middleware that rate limits requests per user.
// Must be applied after Auth middleware.
func RateLimitUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return rateLimit(cfg, "user", func(r *http.Request) (string, bool) {
		id := auth.UserIDFromContext(r.Context())
		return id, id != ""
	}, Limiter.CheckUserRateLimit)
}

// RateLimitIP returns middleware that rate limits requests per client IP.
// Used on unauthenticated account routes.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return rateLimit(cfg, "ip", func(r *http.Request) (string, bool) {
		return getClientIP(r), true
	}, Limiter.CheckIPRateLimit)
}

type checkFunc func(l Limiter, ctx context.Context, key string, rps, burst int) (*cache.RateLimitResult, error)

func rateLimit(cfg RateLimitConfig, kind string, keyOf func(*http.Request) (string, bool), check checkFunc) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil || cfg.RPS <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := keyOf(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			result, err := check(cfg.Limiter, r.Context(), key, cfg.RPS, cfg.Burst)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("type", kind),
					slog.String("error", err.Error()),
				)
				// Fail open - allow request
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.Burst, result.Remaining, result.ResetAt)

			if !result.Allowed {
				retryAfter := retryAfterSeconds(result.RetryAfter)
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", kind),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("retry_after_seconds", retryAfter),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, CodeRateLimited,
					fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// getClientIP returns the client address without its port.
// Forwarding headers are left to chi's RealIP, which runs earlier in the chain.
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// localIdleTTL is how long an unused in-process bucket is kept.
const localIdleTTL = 10 * time.Minute

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is an in-process token bucket per key, used when Redis is
// not configured. Limits are per instance.
type LocalLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalLimiter creates an empty LocalLimiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		buckets: map[string]*localBucket{},
		now:     time.Now,
	}
}

// CheckUserRateLimit consumes one token for userID.
func (l *LocalLimiter) CheckUserRateLimit(_ context.Context, userID string, ratePerSecond, burst int) (*cache.RateLimitResult, error) {
	return l.take("user:"+userID, ratePerSecond, burst), nil
}

// CheckIPRateLimit consumes one token for ip.
func (l *LocalLimiter) CheckIPRateLimit(_ context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error) {
	return l.take("ip:"+ip, ratePerSecond, burst), nil
}

func (l *LocalLimiter) take(key string, ratePerSecond, burst int) *cache.RateLimitResult {
	if burst <= 0 {
		burst = ratePerSecond
	}
	now := l.now()

	l.mu.Lock()
	l.sweepLocked(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	lim := b.limiter
	l.mu.Unlock()

	resetAt := now.Add(time.Duration(float64(time.Second) / float64(ratePerSecond)))

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return &cache.RateLimitResult{Allowed: false, ResetAt: resetAt, RetryAfter: time.Second}
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return &cache.RateLimitResult{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    now.Add(delay),
			RetryAfter: delay,
		}
	}

	remaining := int64(math.Floor(lim.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return &cache.RateLimitResult{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}

func (l *LocalLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < localIdleTTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > localIdleTTL {
			delete(l.buckets, key)
		}
	}
}
