// Package ratelimit throttles booking write endpoints with a Redis-backed
// sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-tour/internal/common"
)

// Window is a sliding window counter backed by a Redis sorted set per key.
type Window struct {
	Client *redis.Client
	Prefix string
	// Now is injectable for tests.
	Now func() time.Time
}

// Allow records one event under key and reports whether the caller stays
// within max events per window. A nil client disables limiting.
func (w Window) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	if w.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	until := now.Add(window)
	cutoff := float64(now.Add(-window).UnixNano())
	redisKey := w.Prefix + key

	pipe := w.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, until, err
	}

	current := int(countCmd.Val())
	remaining = max - current
	if remaining < 0 {
		remaining = 0
	}
	return current <= max, remaining, until, nil
}

// ByClientIP derives the limit key from the request's remote address.
func ByClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the limit before delegating. Limiter errors fail open:
// a Redis outage must not block bookings.
type Middleware struct {
	Window  Window
	Key     func(*http.Request) string
	Max     int
	Per     time.Duration
	OnError func(error)
}

// Handler wraps next with rate limiting.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyFn := m.Key
		if keyFn == nil {
			keyFn = ByClientIP
		}
		allowed, remaining, resetAt, err := m.Window.Allow(r.Context(), keyFn(r), m.Per, m.Max)
		if err != nil {
			if m.OnError != nil {
				m.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(m.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
