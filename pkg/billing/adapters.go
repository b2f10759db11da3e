package billing

import (
	"context"
	"errors"

	"github.com/jordanlanch/storefront/pkg/audit"
	"github.com/jordanlanch/storefront/pkg/email"
	"github.com/jordanlanch/storefront/pkg/models"
)

// EmailServiceAdapter adapts the email.Service to the EmailSender interface.
type EmailServiceAdapter struct {
	service *email.Service
}

// NewEmailServiceAdapter creates a new adapter wrapping the email service.
func NewEmailServiceAdapter(s *email.Service) *EmailServiceAdapter {
	return &EmailServiceAdapter{service: s}
}

// SendReceipt sends a subscription receipt using the underlying email service.
func (a *EmailServiceAdapter) SendReceipt(ctx context.Context, to string, r Receipt) error {
	return a.service.Send(ctx, email.Message{
		To:       to,
		Subject:  r.Subject,
		HTML:     r.HTML,
		Text:     r.Text,
		Category: "receipt",
	})
}

// AuditServiceAdapter adapts the audit.Store to the AttemptLedger interface.
type AuditServiceAdapter struct {
	store *audit.Store
}

// NewAuditServiceAdapter creates a new adapter wrapping the audit store.
func NewAuditServiceAdapter(s *audit.Store) *AuditServiceAdapter {
	return &AuditServiceAdapter{store: s}
}

// RecordAttempt stores a created subscription.
func (a *AuditServiceAdapter) RecordAttempt(ctx context.Context, email string, priceIDs []string, res *models.SubscriptionResource) error {
	return a.store.Record(ctx, audit.Attempt{
		SubscriptionID: res.ID,
		CustomerID:     res.CustomerID,
		Email:          email,
		PriceIDs:       priceIDs,
		CouponApplied:  res.CouponApplied,
		Status:         res.Status,
	})
}

// RecordFinalized updates the stored status. Subscriptions created before the ledger was
// enabled are skipped.
func (a *AuditServiceAdapter) RecordFinalized(ctx context.Context, res *models.SubscriptionResource) error {
	err := a.store.UpdateStatus(ctx, res.ID, res.Status)
	if errors.Is(err, audit.ErrNotFound) {
		return nil
	}
	return err
}
