package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jordanlanch/storefront/pkg/domain"
)

// Event types the storefront logs. Webhooks are informational only and never change
// subscription state; finalize reads the provider directly.
var loggedEvents = map[stripe.EventType]bool{
	"customer.created":              true,
	"customer.updated":              true,
	"invoice.upcoming":              true,
	"invoice.created":               true,
	"invoice.finalized":             true,
	"invoice.payment_succeeded":     true,
	"invoice.payment_failed":        true,
	"customer.subscription.created": true,
}

// SetWebhookSecret enables signature verification of webhook payloads.
func (s *Service) SetWebhookSecret(secret string) {
	s.webhookSecret = secret
}

// HandleWebhook verifies and logs a Stripe event. Without a configured secret the payload is
// parsed unsigned, which is only meant for local development.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (stripe.EventType, error) {
	var event stripe.Event
	if s.webhookSecret != "" {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			s.logger.Warn("webhook signature verification failed", "error", err)
			return "", domain.NewValidationError("Invalid webhook signature")
		}
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return "", domain.NewValidationError("Invalid webhook payload")
	}

	if !loggedEvents[event.Type] {
		s.logger.Warn("unhandled webhook event", "event_id", event.ID, "type", event.Type)
		return event.Type, domain.NewValidationError(fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	s.metrics.RecordWebhookEvent(string(event.Type))

	var objectID interface{}
	if event.Data != nil {
		objectID = event.Data.Object["id"]
	}
	s.logger.Info("webhook event received",
		"event_id", event.ID,
		"type", event.Type,
		"object_id", objectID,
	)
	return event.Type, nil
}
