package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"

	"github.com/jordanlanch/storefront/pkg/api/errors"
	"github.com/jordanlanch/storefront/pkg/models"
)

// maxWebhookBody bounds how much of a delivery is read.
const maxWebhookBody = 1 << 20

// WebhookProcessor verifies and logs billing events
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (stripe.EventType, error)
}

// WebhookHandler handles Stripe webhook deliveries
type WebhookHandler struct {
	processor WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandleWebhook handles Stripe webhook events
// @Summary Handle Stripe webhook
// @Description Verify the Stripe signature and log billing lifecycle events
// @Tags Billing
// @Accept json
// @Produce json
// @Param Stripe-Signature header string false "Stripe webhook signature"
// @Success 200 {object} models.WebhookAck
// @Failure 400 {object} models.ErrorResponse "Invalid payload, signature or event type"
// @Router /webhook [post]
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return errors.ValidationError(c, err)
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if _, err := h.processor.HandleWebhook(c.Request().Context(), body, signature); err != nil {
		return errors.DomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}
