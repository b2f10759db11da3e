package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4/middleware"
)

// CORSConfig lets the configured shop origins call the checkout API. Credentials are never
// allowed; the client sends an Idempotency-Key and reads Idempotent-Replayed.
func CORSConfig(origins []string) middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			IdempotencyKeyHeader,
		},
		ExposeHeaders: []string{
			ReplayedHeader,
		},
	}
}
