package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/jordanlanch/storefront/pkg/domain"
)

type fakePaymentMethods struct {
	pm     *stripe.PaymentMethod
	err    error
	params *stripe.PaymentMethodParams
}

func (f *fakePaymentMethods) New(params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error) {
	f.params = params
	return f.pm, f.err
}

func TestStripeTokenizer(t *testing.T) {
	methods := &fakePaymentMethods{pm: &stripe.PaymentMethod{ID: "pm_123"}}
	tok := NewStripeTokenizer(methods)

	token, err := tok.Tokenize(context.Background(), testCard, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, PaymentToken("pm_123"), token)
	assert.Equal(t, "card", *methods.params.Type)
	assert.Equal(t, "4242424242424242", *methods.params.Card.Number)
	assert.Equal(t, "buyer@example.com", *methods.params.BillingDetails.Email)
}

func TestStripeTokenizer_Declines(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		pm     *stripe.PaymentMethod
		reason string
	}{
		{"card error", &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined."}, nil, "Your card was declined."},
		{"no message", errors.New("timeout"), nil, genericDecline},
		{"empty result", nil, &stripe.PaymentMethod{}, genericDecline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := NewStripeTokenizer(&fakePaymentMethods{pm: tt.pm, err: tt.err})
			_, err := tok.Tokenize(context.Background(), testCard, "buyer@example.com")
			var de *DeclineError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.reason, de.Reason)
		})
	}
}

func TestCardDetailsRedacted(t *testing.T) {
	out := fmt.Sprintf("%v %+v %#v %s", testCard, testCard, testCard, testCard)
	assert.NotContains(t, out, "4242")
	assert.NotContains(t, out, "123")
}

type fakeIntents struct {
	sequence []*stripe.PaymentIntent
	err      error
	calls    int
	ids      []string
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.ids = append(f.ids, id)
	if f.err != nil {
		return nil, f.err
	}
	pi := f.sequence[f.calls]
	f.calls++
	return pi, nil
}

func requiresAction(url string) *stripe.PaymentIntent {
	return &stripe.PaymentIntent{
		ID:     "pi_1",
		Status: stripe.PaymentIntentStatusRequiresAction,
		NextAction: &stripe.PaymentIntentNextAction{
			RedirectToURL: &stripe.PaymentIntentNextActionRedirectToURL{URL: url},
		},
	}
}

func TestStripeAuthenticator(t *testing.T) {
	succeeded := &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded}
	failed := &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}

	tests := []struct {
		name         string
		sequence     []*stripe.PaymentIntent
		challengeErr error
		wantErr      bool
		challenges   int
	}{
		{"challenge approved", []*stripe.PaymentIntent{requiresAction("https://bank/3ds"), succeeded}, nil, false, 1},
		{"challenge rejected by bank", []*stripe.PaymentIntent{requiresAction("https://bank/3ds"), failed}, nil, true, 1},
		{"buyer abandons challenge", []*stripe.PaymentIntent{requiresAction("https://bank/3ds")}, errors.New("closed"), true, 1},
		{"already settled", []*stripe.PaymentIntent{succeeded}, nil, false, 0},
		{"unsupported next action", []*stripe.PaymentIntent{{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresAction}}, nil, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents := &fakeIntents{sequence: tt.sequence}
			var urls []string
			auth := NewStripeAuthenticator(intents, func(ctx context.Context, url string) error {
				urls = append(urls, url)
				return tt.challengeErr
			})

			err := auth.Authenticate(context.Background(), "pi_1_secret_abc")
			if tt.wantErr {
				assert.True(t, domain.IsAuthenticationFailed(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, urls, tt.challenges)
			for _, id := range intents.ids {
				assert.Equal(t, "pi_1", id)
			}
		})
	}
}

func TestStripeAuthenticator_BadSecret(t *testing.T) {
	auth := NewStripeAuthenticator(&fakeIntents{}, nil)
	assert.True(t, domain.IsAuthenticationFailed(auth.Authenticate(context.Background(), "garbage")))

	auth = NewStripeAuthenticator(&fakeIntents{err: errors.New("boom")}, nil)
	assert.True(t, domain.IsAuthenticationFailed(auth.Authenticate(context.Background(), "pi_1_secret_abc")))
}

func TestIntentIDFromSecret(t *testing.T) {
	assert.Equal(t, "pi_123", intentIDFromSecret("pi_123_secret_abc"))
	assert.Equal(t, "", intentIDFromSecret("_secret_abc"))
	assert.Equal(t, "", intentIDFromSecret("pi_123"))
}
