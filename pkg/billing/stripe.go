package billing

import (
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/jordanlanch/storefront/pkg/domain"
)

type stripeCustomerAPI interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type stripeSubscriptionAPI interface {
	New(params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	Get(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// StripeClients are the Stripe resources the service calls. Tests inject fakes.
type StripeClients struct {
	Customers     stripeCustomerAPI
	Subscriptions stripeSubscriptionAPI
}

// NewStripeClients builds clients for secretKey with automatic retries disabled.
func NewStripeClients(secretKey string) *StripeClients {
	sc := NewStripeAPI(secretKey)
	return &StripeClients{
		Customers:     sc.Customers,
		Subscriptions: sc.Subscriptions,
	}
}

// NewStripeAPI returns a Stripe client that never retries on its own. A failed call is
// surfaced to the buyer instead.
func NewStripeAPI(key string) *client.API {
	retries := int64(0)
	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			MaxNetworkRetries: &retries,
		}),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{
			MaxNetworkRetries: &retries,
		}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{
			MaxNetworkRetries: &retries,
		}),
	}
	return client.New(key, backends)
}

// creationError keeps the provider's human-readable message and hides everything else.
func creationError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return domain.NewCreationFailedError(se.Msg, err)
	}
	return domain.NewInternalError(err)
}

func isResourceMissing(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound
}
