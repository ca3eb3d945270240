package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterMiddleware throttles query API callers, one token bucket per
// API key.
type RateLimiterMiddleware struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	// Rate is the number of events per second.
	rate rate.Limit
	// Burst is the burst size.
	burst  int
	logger *slog.Logger
}

func NewRateLimiterMiddleware(r rate.Limit, b int, logger *slog.Logger) *RateLimiterMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiterMiddleware{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    b,
		logger:   logger,
	}
}

func (rl *RateLimiterMiddleware) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Middleware must run after APIKeyMiddleware; requests without a key in the
// context are rejected.
func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := APIKeyFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		limiter := rl.limiterFor(key)
		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded", slog.String("path", r.URL.Path))
			w.Header().Set("Retry-After", retryAfter(limiter))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter is the whole number of seconds until the next token.
func retryAfter(l *rate.Limiter) string {
	if l.Limit() <= 0 {
		return "60"
	}
	wait := time.Duration(float64(time.Second) / float64(l.Limit()))
	return strconv.Itoa(int(math.Max(1, math.Ceil(wait.Seconds()))))
}
