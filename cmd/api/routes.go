package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/storefront/pkg/api/handlers"
	"github.com/jordanlanch/storefront/pkg/audit"
	"github.com/jordanlanch/storefront/pkg/billing"
	"github.com/jordanlanch/storefront/pkg/cache"
	"github.com/jordanlanch/storefront/pkg/logger"
	"github.com/jordanlanch/storefront/pkg/metrics"
	custommiddleware "github.com/jordanlanch/storefront/pkg/middleware"
)

type routeDeps struct {
	Service     *billing.Service
	Redis       *cache.Client
	Ledger      *audit.Store
	Metrics     *metrics.Metrics
	Logger      logger.Logger
	StaticDir   string
	CheckoutRL  *custommiddleware.RateLimiter
	WebhookRL   *custommiddleware.RateLimiter
	Environment string
}

func registerRoutes(e *echo.Echo, d routeDeps) {
	checkoutHandler := handlers.NewCheckoutHandler(d.Service)
	webhookHandler := handlers.NewWebhookHandler(d.Service)

	healthHandler := handlers.NewHealthHandler()
	if d.Redis != nil {
		healthHandler.AddCheck("redis", d.Redis.Ping)
	}
	if d.Ledger != nil {
		healthHandler.AddCheck("ledger", d.Ledger.Ping)
	}

	if d.StaticDir != "" {
		e.Static("/", d.StaticDir)
	} else {
		e.GET("/", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]any{
				"name":        "Storefront API",
				"status":      "running",
				"environment": d.Environment,
				"timestamp":   time.Now().Unix(),
			})
		})
	}

	e.GET("/health", healthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/setup-page", checkoutHandler.SetupPage)
	e.POST("/price-preview", checkoutHandler.PricePreview)

	idempotent := custommiddleware.Idempotency(d.Redis, d.Metrics, d.Logger)
	var checkoutLimit echo.MiddlewareFunc = noop
	if d.CheckoutRL != nil {
		checkoutLimit = d.CheckoutRL.RateLimitMiddleware()
	}
	e.POST("/create-customer", checkoutHandler.CreateSubscription, checkoutLimit, idempotent)
	e.POST("/subscription", checkoutHandler.ConfirmSubscription, checkoutLimit)

	var webhookLimit echo.MiddlewareFunc = noop
	if d.WebhookRL != nil {
		webhookLimit = d.WebhookRL.RateLimitMiddleware()
	}
	e.POST("/webhook", webhookHandler.HandleWebhook, webhookLimit)
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }
