package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/jordanlanch/storefront/pkg/metrics"
	"github.com/jordanlanch/storefront/pkg/models"
)

const sweepInterval = 3 * time.Minute

// RateLimiter keeps one token bucket per client IP. Buckets that have refilled are swept
// periodically until Stop is called.
type RateLimiter struct {
	name    string
	limit   rate.Limit
	burst   int
	metrics *metrics.Metrics

	mu      sync.Mutex
	buckets map[string]*rate.Limiter

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter called name allowing requestsPerMinute with the given burst.
func NewRateLimiter(name string, requestsPerMinute, burst int) *RateLimiter {
	rl := &RateLimiter{
		name:    name,
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop(sweepInterval)
	return rl
}

// SetMetrics counts rejected requests under the limiter's name.
func (rl *RateLimiter) SetMetrics(m *metrics.Metrics) {
	rl.metrics = m
}

func (rl *RateLimiter) bucket(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[ip] = b
	}
	return b
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, b := range rl.buckets {
		if b.Tokens() >= float64(rl.burst) {
			delete(rl.buckets, ip)
		}
	}
}

// retryAfter is how long until ip's bucket holds a token again, rounded up to whole seconds.
func retryAfter(b *rate.Limiter) int {
	r := b.Reserve()
	delay := r.Delay()
	r.Cancel()
	return int(math.Ceil(delay.Seconds()))
}

// RateLimitMiddleware rejects requests over budget with 429 and a Retry-After header.
func (rl *RateLimiter) RateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = c.Request().RemoteAddr
			}

			b := rl.bucket(ip)
			if b.Allow() {
				return next(c)
			}

			rl.metrics.RecordRateLimited(rl.name)
			if wait := retryAfter(b); wait > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(wait))
			}
			return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: models.ErrorBody{
					Code:    "RATE_LIMITED",
					Message: "Too many requests. Please try again later.",
				},
			})
		}
	}
}
