package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/storefront/pkg/api/errors"
	"github.com/jordanlanch/storefront/pkg/billing"
	"github.com/jordanlanch/storefront/pkg/models"
)

// SubscriptionService is the billing side of the checkout endpoints.
type SubscriptionService interface {
	SetupPage() *models.SetupResponse
	PreviewPrice(req *models.PricePreviewRequest) (*models.PricePreviewResponse, error)
	CreateSubscription(ctx context.Context, req *models.CreateSubscriptionRequest) (*models.SubscriptionResource, error)
	FinalizeSubscription(ctx context.Context, subscriptionID string) (*models.SubscriptionResource, error)
}

// CheckoutHandler handles the storefront checkout endpoints
type CheckoutHandler struct {
	service SubscriptionService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(service SubscriptionService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// SetupPage returns the publishable key, products and discount policy
// @Summary Checkout bootstrap
// @Tags Checkout
// @Produce json
// @Success 200 {object} models.SetupResponse
// @Router /setup-page [get]
func (h *CheckoutHandler) SetupPage(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.SetupPage())
}

// PricePreview returns the server-computed summary for a selection
// @Summary Preview a selection price
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body models.PricePreviewRequest true "Selected price ids"
// @Success 200 {object} models.PricePreviewResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /price-preview [post]
func (h *CheckoutHandler) PricePreview(c echo.Context) error {
	var req models.PricePreviewRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	preview, err := h.service.PreviewPrice(&req)
	if err != nil {
		return errors.DomainError(c, err)
	}
	return c.JSON(http.StatusOK, preview)
}

// CreateSubscription creates a customer and its subscription
// @Summary Create customer and subscription
// @Tags Checkout
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client generated key for safe retries"
// @Param request body models.CreateSubscriptionRequest true "Email, payment method and price ids"
// @Success 200 {object} models.SubscriptionResource
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 402 {object} models.ErrorResponse "Rejected by the billing provider"
// @Failure 502 {object} models.ErrorResponse "Unexpected billing provider response"
// @Router /create-customer [post]
func (h *CheckoutHandler) CreateSubscription(c echo.Context) error {
	var req models.CreateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx := c.Request().Context()
	if key := c.Request().Header.Get(billing.IdempotencyHeader); key != "" {
		ctx = billing.WithIdempotencyKey(ctx, key)
	}

	res, err := h.service.CreateSubscription(ctx, &req)
	if err != nil {
		return errors.DomainError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ConfirmSubscription re-reads a subscription after any payment challenge
// @Summary Finalize subscription
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body models.ConfirmSubscriptionRequest true "Subscription id"
// @Success 200 {object} models.SubscriptionResource
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /subscription [post]
func (h *CheckoutHandler) ConfirmSubscription(c echo.Context) error {
	var req models.ConfirmSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	res, err := h.service.FinalizeSubscription(c.Request().Context(), req.SubscriptionID)
	if err != nil {
		return errors.DomainError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
