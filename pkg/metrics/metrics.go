package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec
	RateLimited         *prometheus.CounterVec

	// Checkout metrics
	SubscriptionsCreated    *prometheus.CounterVec
	SubscriptionsFinalized  *prometheus.CounterVec
	CouponsApplied          prometheus.Counter
	AuthenticationsRequired prometheus.Counter
	BillingErrors           *prometheus.CounterVec
	WebhookEvents           *prometheus.CounterVec

	// Ledger metrics
	DBQueryDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a Metrics instance registered against reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),

		RateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Total number of requests rejected by a rate limiter",
			},
			[]string{"limiter"}, // global, checkout, webhook
		),

		// Checkout metrics
		SubscriptionsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscriptions_created_total",
				Help: "Total number of subscriptions created",
			},
			[]string{"status"}, // active, incomplete, trialing
		),
		SubscriptionsFinalized: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscriptions_finalized_total",
				Help: "Total number of finalize calls by resulting status",
			},
			[]string{"status"},
		),
		CouponsApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "coupons_applied_total",
			Help: "Total number of subscriptions created with the volume coupon",
		}),
		AuthenticationsRequired: f.NewCounter(prometheus.CounterOpts{
			Name: "authentications_required_total",
			Help: "Total number of subscriptions whose first payment required an interactive challenge",
		}),
		BillingErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_errors_total",
				Help: "Total number of billing provider errors",
			},
			[]string{"operation"}, // create_customer, create_subscription, get_subscription
		),
		WebhookEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total number of webhook events received",
			},
			[]string{"type"},
		),

		// Ledger metrics
		DBQueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation"}, // insert, update, delete
		),

		// Cache metrics
		CacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"}, // catalog, idempotency
		),
		CacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw path

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordSubscriptionCreated counts a created subscription and whether it carried the coupon
// or needed authentication.
func (m *Metrics) RecordSubscriptionCreated(status string, couponApplied, requiresAuth bool) {
	if m == nil {
		return
	}
	m.SubscriptionsCreated.WithLabelValues(status).Inc()
	if couponApplied {
		m.CouponsApplied.Inc()
	}
	if requiresAuth {
		m.AuthenticationsRequired.Inc()
	}
}

// RecordSubscriptionFinalized increments the finalize counter
func (m *Metrics) RecordSubscriptionFinalized(status string) {
	if m == nil {
		return
	}
	m.SubscriptionsFinalized.WithLabelValues(status).Inc()
}

// RecordBillingError increments billing errors for an operation
func (m *Metrics) RecordBillingError(operation string) {
	if m == nil {
		return
	}
	m.BillingErrors.WithLabelValues(operation).Inc()
}

// RecordWebhookEvent increments the webhook counter
func (m *Metrics) RecordWebhookEvent(eventType string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType).Inc()
}

// RecordRateLimited counts a request rejected by the named limiter
func (m *Metrics) RecordRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(limiter).Inc()
}

// RecordDBQuery records database query duration
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
