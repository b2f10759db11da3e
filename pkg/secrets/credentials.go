package secrets

import (
	"context"
	"errors"
	"fmt"
)

// Credentials are the provider keys the server needs at start-up.
type Credentials struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	SendGridAPIKey      string
}

// LoadCredentials resolves every credential from m. A missing webhook secret or SendGrid key is
// not an error; those features degrade. A missing Stripe secret key is.
func LoadCredentials(ctx context.Context, m Manager) (*Credentials, error) {
	var creds Credentials
	var err error

	if creds.StripeSecretKey, err = m.GetSecret(ctx, "STRIPE_SECRET_KEY"); err != nil {
		return nil, fmt.Errorf("required secret STRIPE_SECRET_KEY: %w", err)
	}
	if creds.StripeWebhookSecret, err = optional(ctx, m, "STRIPE_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}
	if creds.SendGridAPIKey, err = optional(ctx, m, "SENDGRID_API_KEY"); err != nil {
		return nil, err
	}
	return &creds, nil
}

func optional(ctx context.Context, m Manager, key string) (string, error) {
	value, err := m.GetSecret(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", key, err)
	}
	return value, nil
}
