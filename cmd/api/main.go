package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jordanlanch/storefront/config"
	"github.com/jordanlanch/storefront/pkg/audit"
	"github.com/jordanlanch/storefront/pkg/billing"
	"github.com/jordanlanch/storefront/pkg/cache"
	"github.com/jordanlanch/storefront/pkg/catalog"
	"github.com/jordanlanch/storefront/pkg/database"
	"github.com/jordanlanch/storefront/pkg/email"
	"github.com/jordanlanch/storefront/pkg/jobs"
	"github.com/jordanlanch/storefront/pkg/logger"
	"github.com/jordanlanch/storefront/pkg/metrics"
	custommiddleware "github.com/jordanlanch/storefront/pkg/middleware"
	"github.com/jordanlanch/storefront/pkg/secrets"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)
	if err := resolveCredentials(context.Background(), cfg); err != nil {
		log.Fatalf("❌ Failed to load credentials: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New(prometheus.DefaultRegisterer)
	log.Printf("✅ Prometheus metrics initialized")

	// Redis is optional: idempotent replay, catalog cache and the receipt guard use it
	var redisClient *cache.Client
	if cfg.RedisURL != "" {
		var err error
		redisClient, err = cache.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		log.Printf("ℹ️  Redis disabled (no REDIS_URL configured)")
	}

	stripeAPI := billing.NewStripeAPI(cfg.StripeSecretKey)

	// Load the product catalog
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	cat, err := loadCatalog(startupCtx, cfg, catalog.StripePriceLister{Prices: stripeAPI.Prices}, redisClient, appLogger, prometheusMetrics)
	cancelStartup()
	if err != nil {
		log.Fatalf("❌ Failed to load catalog: %v", err)
	}
	log.Printf("✅ Catalog loaded (%d products, discount %.0f%% from %d products)",
		cat.Len(), cat.Policy().Rate*100, cat.Policy().MinQualifyingCount)

	// Initialize billing
	billingService, err := billing.NewService(billing.Config{
		Catalog:   cat,
		CouponID:  cfg.StripeCouponID,
		StoreName: cfg.EmailFromName,
		Clients:   &billing.StripeClients{Customers: stripeAPI.Customers, Subscriptions: stripeAPI.Subscriptions},
		Logger:    appLogger,
		Metrics:   prometheusMetrics,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize billing: %v", err)
	}
	billingService.SetWebhookSecret(cfg.StripeWebhookSecret)
	if cfg.StripeWebhookSecret == "" {
		log.Printf("⚠️  STRIPE_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}
	if redisClient != nil {
		billingService.SetOnceGuard(redisClient)
	}
	if cfg.FeatureReceiptEmails {
		emailService := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.SendGridAPIKey)
		billingService.SetEmailSender(billing.NewEmailServiceAdapter(emailService))
		log.Printf("✅ Receipt emails enabled")
	}

	// Audit ledger is optional
	var (
		ledger      *audit.Store
		cronManager *jobs.CronManager
	)
	if cfg.DatabaseURL != "" {
		db, err := database.NewClient(context.Background(), cfg.DatabaseURL, database.Options{
			MaxOpenConns: cfg.DatabaseMaxOpenConns,
			SSLMode:      cfg.DatabaseSSLMode,
			SSLRootCert:  cfg.DatabaseSSLRootCert,
		})
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer db.Close()

		ledger = audit.NewStore(db.DB, prometheusMetrics)
		if err := ledger.Migrate(context.Background()); err != nil {
			log.Fatalf("❌ Failed to migrate audit ledger: %v", err)
		}
		billingService.SetLedger(billing.NewAuditServiceAdapter(ledger))
		log.Printf("✅ Audit ledger enabled (%s)", db.Driver)

		cronManager = jobs.NewCronManager(ledger, cfg.AuditRetentionDays, log.Default())
		if err := cronManager.SetupJobs(); err != nil {
			log.Fatalf("❌ Failed to set up cron jobs: %v", err)
		}
		cronManager.Start()
	} else {
		log.Printf("ℹ️  Audit ledger disabled (no DATABASE_URL configured)")
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter("global", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	defer globalRateLimiter.Stop()
	checkoutRateLimiter := custommiddleware.NewRateLimiter("checkout", 10, 3) // creates and confirms per IP
	defer checkoutRateLimiter.Stop()
	webhookRateLimiter := custommiddleware.NewRateLimiter("webhook", 100, 20)
	defer webhookRateLimiter.Stop()
	for _, rl := range []*custommiddleware.RateLimiter{globalRateLimiter, checkoutRateLimiter, webhookRateLimiter} {
		rl.SetMetrics(prometheusMetrics)
	}

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Repanic after capturing to let the Recover middleware handle it
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.SecurityHeadersConfig{}))
	e.Use(globalRateLimiter.RateLimitMiddleware())

	registerRoutes(e, routeDeps{
		Service:     billingService,
		Redis:       redisClient,
		Ledger:      ledger,
		Metrics:     prometheusMetrics,
		Logger:      appLogger,
		StaticDir:   cfg.StaticDir,
		CheckoutRL:  checkoutRateLimiter,
		WebhookRL:   webhookRateLimiter,
		Environment: cfg.APIEnvironment,
	})

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 Storefront API starting on %s", address)
	log.Printf("📝 Log level: %s", cfg.LogLevel)
	log.Printf("🌍 CORS: %v", cfg.CORSAllowedOrigins)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d), checkout 10/min, webhook 100/min", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	if cronManager != nil {
		cronManager.Stop()
		log.Println("✅ Cron jobs stopped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// loadCatalog reads products from CATALOG_FILE when set, otherwise from Stripe prices,
// cached in Redis when available.
func loadCatalog(ctx context.Context, cfg *config.Config, lister catalog.PriceLister, redisClient *cache.Client, appLogger logger.Logger, m *metrics.Metrics) (*catalog.Catalog, error) {
	policy := catalog.DiscountPolicy{
		MinQualifyingCount: cfg.MinProductsForDiscount,
		Rate:               cfg.DiscountRate,
	}

	var src catalog.Source
	if cfg.CatalogFile != "" {
		src = catalog.FileSource{Path: cfg.CatalogFile}
	} else {
		src = catalog.NewStripeSource(lister, cfg.CatalogProducts)
		if redisClient != nil {
			ttl := time.Duration(cfg.CatalogCacheTTL) * time.Second
			src = catalog.NewCachedSource(src, redisClient, ttl, appLogger, m)
		}
	}

	return catalog.Load(ctx, src, policy, cfg.StripePublishableKey)
}

// resolveCredentials replaces the provider keys in cfg with the values from the configured
// secrets backend.
func resolveCredentials(ctx context.Context, cfg *config.Config) error {
	manager, err := secrets.NewManager(secrets.Config{
		Backend:       cfg.SecretsBackend,
		AWSRegion:     cfg.AWSRegion,
		Prefix:        cfg.SecretsPrefix,
		CacheDuration: 5 * time.Minute,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	creds, err := secrets.LoadCredentials(ctx, manager)
	if err != nil {
		return err
	}
	cfg.StripeSecretKey = creds.StripeSecretKey
	cfg.StripeWebhookSecret = creds.StripeWebhookSecret
	cfg.SendGridAPIKey = creds.SendGridAPIKey
	log.Printf("🔐 Credentials loaded from %s backend", cfg.SecretsBackend)
	return nil
}
