// Package ratelimit paces outbound requests to third-party APIs, one token
// bucket per host, adjusted from the rate limit headers each API returns.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default pacing for a host that has not told us its limits yet
const (
	DefaultInterval = 200 * time.Millisecond
	DefaultBurst    = 5
)

// Bucket holds the limit state for one host
type Bucket struct {
	Remaining int       // Requests remaining in current window, -1 if unknown
	Limit     int       // Total requests allowed per window, 0 if unknown
	ResetAt   time.Time // When the window resets
	limiter   *rate.Limiter
	mu        sync.Mutex
}

// RateLimiter manages one bucket per host
type RateLimiter struct {
	buckets map[string]*Bucket
	mu      sync.RWMutex
	logger  *zap.Logger
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*Bucket),
		logger:  logger,
		now:     time.Now,
	}
}

func (rl *RateLimiter) getBucket(host string) *Bucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[host]
	rl.mu.RUnlock()
	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[host]; exists {
		return bucket
	}
	bucket = &Bucket{
		Remaining: -1,
		limiter:   rate.NewLimiter(rate.Every(DefaultInterval), DefaultBurst),
	}
	rl.buckets[host] = bucket
	return bucket
}

// Wait blocks until a request to host may be sent or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	bucket := rl.getBucket(host)

	bucket.mu.Lock()
	var pause time.Duration
	if bucket.Remaining == 0 && rl.now().Before(bucket.ResetAt) {
		pause = bucket.ResetAt.Sub(rl.now())
	}
	limiter := bucket.limiter
	bucket.mu.Unlock()

	if pause > 0 {
		rl.logger.Warn("Rate limit exhausted, waiting",
			zap.String("host", host),
			zap.Duration("wait_duration", pause),
		)
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter wait cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

// UpdateFromHeaders records the X-RateLimit-* headers of a response from host.
// Reset may be a unix timestamp, an RFC3339 time, or seconds until reset.
func (rl *RateLimiter) UpdateFromHeaders(host string, headers http.Header) {
	bucket := rl.getBucket(host)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	updated := false
	if v := headers.Get("X-RateLimit-Remaining"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			bucket.Remaining = val
			updated = true
		}
	}
	if v := headers.Get("X-RateLimit-Limit"); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			bucket.Limit = val
			updated = true
		}
	}
	if v := headers.Get("X-RateLimit-Reset"); v != "" {
		if reset, ok := rl.parseReset(v); ok {
			bucket.ResetAt = reset
			updated = true
		}
	}
	if !updated {
		return
	}

	if bucket.Limit > 0 {
		window := bucket.ResetAt.Sub(rl.now())
		if window > 0 {
			perSecond := float64(bucket.Limit) / window.Seconds()
			bucket.limiter.SetLimit(rate.Limit(perSecond))
			bucket.limiter.SetBurst(bucket.Limit)
		}
	}

	rl.logger.Debug("Updated rate limit from headers",
		zap.String("host", host),
		zap.Int("remaining", bucket.Remaining),
		zap.Int("limit", bucket.Limit),
		zap.Time("reset_at", bucket.ResetAt),
	)
}

// HandleTooManyRequests marks host as exhausted after a 429 and returns the
// delay the server asked for.
func (rl *RateLimiter) HandleTooManyRequests(host string, headers http.Header) time.Duration {
	bucket := rl.getBucket(host)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	var retryAfter time.Duration
	if v := headers.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			retryAfter = time.Duration(seconds) * time.Second
		}
	}
	if retryAfter <= 0 {
		if reset, ok := rl.parseReset(headers.Get("X-RateLimit-Reset")); ok {
			retryAfter = reset.Sub(rl.now())
		}
	}
	if retryAfter <= 0 {
		retryAfter = time.Second
	}

	bucket.Remaining = 0
	bucket.ResetAt = rl.now().Add(retryAfter)

	rl.logger.Warn("Rate limited by upstream API",
		zap.String("host", host),
		zap.Duration("retry_after", retryAfter),
	)
	return retryAfter
}

// GetStatus returns the current rate limit status for host
func (rl *RateLimiter) GetStatus(host string) (remaining int, limit int, resetAt time.Time) {
	bucket := rl.getBucket(host)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	return bucket.Remaining, bucket.Limit, bucket.ResetAt
}

func (rl *RateLimiter) parseReset(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	val, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	// Small values are a delta in seconds, large ones an epoch timestamp.
	if val < 1_000_000_000 {
		return rl.now().Add(time.Duration(val) * time.Second), true
	}
	return time.Unix(val, 0), true
}
