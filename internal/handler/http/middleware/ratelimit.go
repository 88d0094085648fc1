package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/handler/http/response"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiterConfig sizes the per-user token bucket.
type RateLimiterConfig struct {
	PerMinute int
	Burst     int
	IdleTTL   time.Duration // limiters unused for this long are dropped
}

// RateLimiter keeps one token bucket per authenticated user. Idle buckets
// expire out of the cache, so a returning user starts with a full burst.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.Cache
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 30
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:    cfg.Burst,
		limiters: cache.New(cfg.IdleTTL, cfg.IdleTTL),
	}
}

// Middleware limits requests per Principal. It must run after AuthRequired.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			response.Unauthorized(w, "Unauthorized")
			return
		}

		if !rl.limiter(p.UserID).Allow() {
			slog.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("user_id", p.UserID),
				slog.String("path", r.URL.Path),
			)
			response.TooManyRequests(w, rl.retryAfter())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(userID string) *rate.Limiter {
	if v, ok := rl.limiters.Get(userID); ok {
		rl.limiters.SetDefault(userID, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	// Add fails when a concurrent request created the bucket first.
	if err := rl.limiters.Add(userID, l, cache.DefaultExpiration); err != nil {
		if v, ok := rl.limiters.Get(userID); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// retryAfter is the number of seconds until one token is refilled.
func (rl *RateLimiter) retryAfter() int {
	sec := int(math.Ceil(1.0 / float64(rl.limit)))
	if sec < 1 {
		sec = 1
	}
	return sec
}

// Count returns the number of live per-user buckets.
func (rl *RateLimiter) Count() int {
	return rl.limiters.ItemCount()
}
