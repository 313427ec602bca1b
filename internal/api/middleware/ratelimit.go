package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zenportal/backend/internal/config"
)

// WindowCounter is the slice of the cache the limiter needs.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimiter applies a per-IP fixed window. The policy on cache outage is
// configurable: fail open keeps the API up at the cost of unmetered traffic,
// fail closed sheds load with 429s.
type RateLimiter struct {
	counter  WindowCounter
	limit    int64
	window   time.Duration
	failOpen bool
}

func NewRateLimiter(counter WindowCounter, cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		counter:  counter,
		limit:    int64(cfg.Limit),
		window:   time.Duration(cfg.WindowSeconds) * time.Second,
		failOpen: cfg.FailOpen,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		windowStart := time.Now().Truncate(rl.window)
		key := fmt.Sprintf("ratelimit:%s:%d", ip, windowStart.Unix())

		count, err := rl.counter.IncrWindow(r.Context(), key, rl.window)
		if err != nil {
			if rl.failOpen {
				slog.Warn("rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			slog.Error("rate limiter unavailable, rejecting request", "error", err)
			rl.reject(w, windowStart)
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(windowStart.Add(rl.window).Unix(), 10))

		if count > rl.limit {
			rl.reject(w, windowStart)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) reject(w http.ResponseWriter, windowStart time.Time) {
	retryAfter := int(time.Until(windowStart.Add(rl.window)).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
}

// clientIP trusts chi's RealIP middleware to have rewritten RemoteAddr from
// the forwarding headers already.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
