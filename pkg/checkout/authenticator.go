package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"

	"github.com/jordanlanch/storefront/pkg/domain"
)

// Authenticator drives an interactive payment challenge for a client secret.
type Authenticator interface {
	Authenticate(ctx context.Context, clientSecret string) error
}

// Challenger presents a bank challenge page to the buyer and returns once they are done with it.
type Challenger func(ctx context.Context, redirectURL string) error

type paymentIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeAuthenticator reads the payment intent behind a client secret, hands its redirect
// challenge to a Challenger and then checks the outcome.
type StripeAuthenticator struct {
	intents   paymentIntentAPI
	challenge Challenger
}

// NewStripeAuthenticator creates an authenticator over a publishable-key client.
func NewStripeAuthenticator(intents paymentIntentAPI, challenge Challenger) *StripeAuthenticator {
	return &StripeAuthenticator{intents: intents, challenge: challenge}
}

// Authenticate implements Authenticator. A nil error means the intent no longer waits on the buyer.
func (a *StripeAuthenticator) Authenticate(ctx context.Context, clientSecret string) error {
	id := intentIDFromSecret(clientSecret)
	if id == "" {
		return domain.NewAuthenticationFailedError("Payment authentication could not be started", nil)
	}

	pi, err := a.get(ctx, id, clientSecret)
	if err != nil {
		return err
	}
	if pi.Status != stripe.PaymentIntentStatusRequiresAction {
		return settled(pi)
	}

	if pi.NextAction == nil || pi.NextAction.RedirectToURL == nil || pi.NextAction.RedirectToURL.URL == "" {
		return domain.NewAuthenticationFailedError("This payment requires an authentication method that is not supported", nil)
	}
	if err := a.challenge(ctx, pi.NextAction.RedirectToURL.URL); err != nil {
		return domain.NewAuthenticationFailedError("Payment authentication was not completed", err)
	}

	pi, err = a.get(ctx, id, clientSecret)
	if err != nil {
		return err
	}
	return settled(pi)
}

func (a *StripeAuthenticator) get(ctx context.Context, id, clientSecret string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{ClientSecret: stripe.String(clientSecret)}
	params.Context = ctx

	pi, err := a.intents.Get(id, params)
	if err != nil {
		return nil, domain.NewAuthenticationFailedError("Payment authentication could not be verified", err)
	}
	if pi == nil {
		return nil, domain.NewAuthenticationFailedError("Payment authentication could not be verified", nil)
	}
	return pi, nil
}

func settled(pi *stripe.PaymentIntent) error {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		return nil
	default:
		return domain.NewAuthenticationFailedError(
			"Your bank did not approve the payment",
			fmt.Errorf("payment intent %s is %s", pi.ID, pi.Status),
		)
	}
}

// intentIDFromSecret extracts "pi_123" from "pi_123_secret_abc".
func intentIDFromSecret(secret string) string {
	i := strings.Index(secret, "_secret_")
	if i <= 0 {
		return ""
	}
	return secret[:i]
}
