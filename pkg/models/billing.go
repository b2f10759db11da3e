package models

import (
	"errors"
	"time"
)

// Payment intent statuses the checkout flow cares about.
const (
	PaymentIntentRequiresAction        = "requires_action"
	PaymentIntentRequiresPaymentMethod = "requires_payment_method"
	PaymentIntentSucceeded             = "succeeded"
)

// CreateSubscriptionRequest is the body of POST /create-customer
type CreateSubscriptionRequest struct {
	Email         string   `json:"email" validate:"required,email"`
	PaymentMethod string   `json:"payment_method" validate:"required"`
	PriceIDs      []string `json:"price_ids" validate:"required,min=1,dive,required"`
}

// ConfirmSubscriptionRequest is the body of POST /subscription
type ConfirmSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

// PricePreviewRequest is the body of POST /price-preview
type PricePreviewRequest struct {
	PriceIDs []string `json:"price_ids" validate:"required,min=1,dive,required"`
}

// SetupPrice is the price half of a setup product, shaped like a Stripe price.
type SetupPrice struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
}

// SetupProduct is one purchasable product in the setup payload
type SetupProduct struct {
	Price SetupPrice `json:"price"`
	Title string     `json:"title"`
	Emoji string     `json:"emoji"`
}

// SetupResponse bootstraps a checkout session
type SetupResponse struct {
	PublicKey              string         `json:"publicKey"`
	MinProductsForDiscount int            `json:"minProductsForDiscount"`
	DiscountRate           float64        `json:"discountRate"`
	Products               []SetupProduct `json:"products"`
}

// PreviewLine is a line of a price preview
type PreviewLine struct {
	PriceID    string `json:"price_id"`
	Title      string `json:"title"`
	UnitAmount int64  `json:"unit_amount"`
}

// PricePreviewResponse is the server-computed price summary
type PricePreviewResponse struct {
	LineItems     []PreviewLine `json:"line_items"`
	Subtotal      int64         `json:"subtotal"`
	Discount      int64         `json:"discount"`
	Total         int64         `json:"total"`
	CouponApplied bool          `json:"coupon_applied"`
	Display       string        `json:"display"`
}

// PaymentIntentInfo is the part of a payment intent the client needs
type PaymentIntentInfo struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// InvoiceInfo is the latest invoice of a subscription
type InvoiceInfo struct {
	ID            string             `json:"id"`
	AmountDue     int64              `json:"amount_due"`
	PaymentIntent *PaymentIntentInfo `json:"payment_intent,omitempty"`
}

// PendingAuthentication carries the client secret of an interactive challenge
type PendingAuthentication struct {
	ClientSecret string `json:"client_secret"`
}

// SubscriptionItemInfo is one priced line of a subscription
type SubscriptionItemInfo struct {
	ID      string `json:"id"`
	PriceID string `json:"price_id"`
}

// SubscriptionResource is the explicit shape of a subscription as returned to the client
type SubscriptionResource struct {
	ID                    string                 `json:"id"`
	Status                string                 `json:"status"`
	CustomerID            string                 `json:"customer,omitempty"`
	CouponApplied         bool                   `json:"coupon_applied"`
	Items                 []SubscriptionItemInfo `json:"items,omitempty"`
	LatestInvoice         *InvoiceInfo           `json:"latest_invoice,omitempty"`
	PendingAuthentication *PendingAuthentication `json:"pending_authentication,omitempty"`
}

// Validate fails on payloads that do not carry the minimum subscription shape.
func (r *SubscriptionResource) Validate() error {
	if r == nil {
		return errors.New("subscription resource is missing")
	}
	if r.ID == "" {
		return errors.New("subscription id is missing")
	}
	if r.Status == "" {
		return errors.New("subscription status is missing")
	}
	if r.LatestInvoice != nil && r.LatestInvoice.PaymentIntent != nil && r.LatestInvoice.PaymentIntent.Status == "" {
		return errors.New("payment intent status is missing")
	}
	if r.PendingAuthentication != nil && r.PendingAuthentication.ClientSecret == "" {
		return errors.New("pending authentication has no client secret")
	}
	return nil
}

// RequiresAuthentication reports whether the first payment waits on an interactive challenge.
func (r *SubscriptionResource) RequiresAuthentication() bool {
	if r.PendingAuthentication != nil && r.PendingAuthentication.ClientSecret != "" {
		return true
	}
	if r.LatestInvoice == nil || r.LatestInvoice.PaymentIntent == nil {
		return false
	}
	return r.LatestInvoice.PaymentIntent.Status == PaymentIntentRequiresAction
}

// ChallengeSecret returns the client secret to authenticate with.
func (r *SubscriptionResource) ChallengeSecret() string {
	if r.PendingAuthentication != nil && r.PendingAuthentication.ClientSecret != "" {
		return r.PendingAuthentication.ClientSecret
	}
	if r.LatestInvoice != nil && r.LatestInvoice.PaymentIntent != nil {
		return r.LatestInvoice.PaymentIntent.ClientSecret
	}
	return ""
}

// ErrorBody is the inner error object
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WebhookAck acknowledges a webhook delivery
type WebhookAck struct {
	Received bool `json:"received"`
}

// HealthResponse reports dependency reachability
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}
