package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/storefront/pkg/cache"
	"github.com/jordanlanch/storefront/pkg/domain"
	"github.com/jordanlanch/storefront/pkg/logger"
	"github.com/jordanlanch/storefront/pkg/metrics"
	"github.com/jordanlanch/storefront/pkg/models"
)

const (
	// IdempotencyKeyHeader is sent by clients on create requests.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the idempotency cache.
	ReplayedHeader = "Idempotent-Replayed"

	idempotencyTTL     = 24 * time.Hour
	idempotencyLockTTL = 30 * time.Second
	maxIdempotencyKey  = 255
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Idempotency replays the stored response of a POST that carried the same Idempotency-Key.
// Server errors and rate limit responses are not stored so the client can retry them.
// A nil cache client disables the middleware.
func Idempotency(store *cache.Client, m *metrics.Metrics, log logger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.Discard()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if store == nil {
			return next
		}

		return func(c echo.Context) error {
			req := c.Request()
			key := req.Header.Get(IdempotencyKeyHeader)
			if req.Method != http.MethodPost || key == "" {
				return next(c)
			}
			if len(key) > maxIdempotencyKey {
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error: models.ErrorBody{Code: domain.ErrCodeValidation, Message: "Idempotency-Key is too long"},
				})
			}

			ctx := req.Context()
			cacheKey := "idempotency:" + req.URL.Path + ":" + key

			var stored storedResponse
			err := store.GetJSON(ctx, cacheKey, &stored)
			switch {
			case err == nil:
				m.RecordCacheHit("idempotency")
				c.Response().Header().Set(ReplayedHeader, "true")
				return c.Blob(stored.Status, stored.ContentType, stored.Body)
			case errors.Is(err, cache.ErrMiss):
				m.RecordCacheMiss("idempotency")
			default:
				log.Warn("idempotency lookup failed, serving uncached", "error", err)
				return next(c)
			}

			lockKey := cacheKey + ":lock"
			token, err := store.Lock(ctx, lockKey, idempotencyLockTTL)
			if err != nil {
				log.Warn("idempotency lock failed, serving uncached", "error", err)
				return next(c)
			}
			if token == "" {
				return c.JSON(http.StatusConflict, models.ErrorResponse{
					Error: models.ErrorBody{Code: "CONFLICT", Message: "A request with this Idempotency-Key is already in progress"},
				})
			}
			defer func() {
				if err := store.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
					log.Warn("failed to release idempotency lock", "error", err)
				}
			}()

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec

			if err := next(c); err != nil {
				return err
			}

			status := c.Response().Status
			if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
				return nil
			}

			stored = storedResponse{
				Status:      status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.body.Bytes(),
			}
			if err := store.SetJSON(context.WithoutCancel(ctx), cacheKey, stored, idempotencyTTL); err != nil {
				log.Warn("failed to store idempotent response", "error", err)
			}
			return nil
		}
	}
}

type bodyRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
