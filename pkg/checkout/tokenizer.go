package checkout

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v76"
)

// PaymentToken is an opaque single-use payment method id. It is never logged or cached.
type PaymentToken string

// CardDetails is raw card input. It only ever travels to the payment network.
type CardDetails struct {
	Number   string
	ExpMonth int64
	ExpYear  int64
	CVC      string
}

// String keeps card data out of logs and fmt output.
func (CardDetails) String() string { return "CardDetails{redacted}" }

// GoString keeps card data out of %#v output.
func (c CardDetails) GoString() string { return c.String() }

const genericDecline = "We could not process your card. Please try again."

// DeclineError is a recoverable tokenization failure with a buyer-facing reason.
type DeclineError struct {
	Reason string
	Err    error
}

func (e *DeclineError) Error() string { return e.Reason }

func (e *DeclineError) Unwrap() error { return e.Err }

// Tokenizer turns card input into a PaymentToken.
type Tokenizer interface {
	Tokenize(ctx context.Context, card CardDetails, email string) (PaymentToken, error)
}

type paymentMethodAPI interface {
	New(params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
}

// StripeTokenizer creates card payment methods directly against Stripe with the publishable key,
// so raw card numbers never reach the storefront server.
type StripeTokenizer struct {
	methods paymentMethodAPI
}

// NewStripeTokenizer wraps the payment method resource of a publishable-key client.
func NewStripeTokenizer(methods paymentMethodAPI) *StripeTokenizer {
	return &StripeTokenizer{methods: methods}
}

// Tokenize implements Tokenizer. Every failure is reported as a *DeclineError.
func (t *StripeTokenizer) Tokenize(ctx context.Context, card CardDetails, email string) (PaymentToken, error) {
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.Int64(card.ExpMonth),
			ExpYear:  stripe.Int64(card.ExpYear),
			CVC:      stripe.String(card.CVC),
		},
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Email: stripe.String(email),
		},
	}
	params.Context = ctx

	pm, err := t.methods.New(params)
	if err != nil {
		return "", &DeclineError{Reason: declineReason(err), Err: err}
	}
	if pm == nil || pm.ID == "" {
		return "", &DeclineError{Reason: genericDecline, Err: errors.New("payment method id is missing")}
	}
	return PaymentToken(pm.ID), nil
}

func declineReason(err error) string {
	var de *DeclineError
	if errors.As(err, &de) && de.Reason != "" {
		return de.Reason
	}
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return genericDecline
}
