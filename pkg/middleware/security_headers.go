package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// Stripe origins the checkout page loads Stripe.js and 3D Secure frames from.
var (
	stripeScriptSources = []string{"https://js.stripe.com"}
	stripeFrameSources  = []string{"https://js.stripe.com", "https://hooks.stripe.com"}
	stripeAPISources    = []string{"https://api.stripe.com"}
)

// SecurityHeadersConfig configures SecurityHeaders. Zero values fall back to the checkout
// defaults.
type SecurityHeadersConfig struct {
	// ConnectSources are extra origins the page may fetch from, e.g. a separate API host.
	ConnectSources []string
	// ContentSecurityPolicy replaces the generated policy entirely when set.
	ContentSecurityPolicy string
	ReferrerPolicy        string
	PermissionsPolicy     string
}

type directive struct {
	name    string
	sources []string
}

// CheckoutPolicy builds the Content-Security-Policy for the checkout page.
func CheckoutPolicy(connectSources ...string) string {
	directives := []directive{
		{"default-src", []string{"'self'"}},
		{"script-src", append([]string{"'self'"}, stripeScriptSources...)},
		{"style-src", []string{"'self'", "'unsafe-inline'"}},
		{"img-src", []string{"'self'", "data:"}},
		{"connect-src", append(append([]string{"'self'"}, stripeAPISources...), connectSources...)},
		{"frame-src", stripeFrameSources},
		{"frame-ancestors", []string{"'none'"}},
		{"base-uri", []string{"'self'"}},
		{"form-action", []string{"'self'"}},
	}
	parts := make([]string, len(directives))
	for i, d := range directives {
		parts[i] = d.name + " " + strings.Join(d.sources, " ")
	}
	return strings.Join(parts, "; ")
}

// SecurityHeaders sets Content-Security-Policy, Referrer-Policy and Permissions-Policy on
// every response.
func SecurityHeaders(config SecurityHeadersConfig) echo.MiddlewareFunc {
	csp := config.ContentSecurityPolicy
	if csp == "" {
		csp = CheckoutPolicy(config.ConnectSources...)
	}
	referrer := config.ReferrerPolicy
	if referrer == "" {
		referrer = "strict-origin-when-cross-origin"
	}
	permissions := config.PermissionsPolicy
	if permissions == "" {
		// Payment Request API stays available to Stripe.js only.
		permissions = `camera=(), microphone=(), geolocation=(), payment=(self "https://js.stripe.com")`
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("Referrer-Policy", referrer)
			h.Set("Permissions-Policy", permissions)
			return next(c)
		}
	}
}
