package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/storefront/pkg/models"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports the reachability of optional dependencies
type HealthHandler struct {
	names  []string
	checks map[string]HealthCheck
	now    func() time.Time
}

// NewHealthHandler creates a health handler without checks
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: make(map[string]HealthCheck), now: time.Now}
}

// AddCheck registers a named dependency probe
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
		sort.Strings(h.names)
	}
	h.checks[name] = check
}

// Health returns 200 when every check passes and 503 otherwise
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	resp := models.HealthResponse{
		Status: "ok",
		Checks: make(map[string]string, len(h.names)),
		Time:   h.now().UTC(),
	}

	for _, name := range h.names {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
		err := h.checks[name](ctx)
		cancel()

		if err != nil {
			c.Logger().Warnf("health check %s failed: %v", name, err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}
