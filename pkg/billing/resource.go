package billing

import (
	"github.com/stripe/stripe-go/v76"

	"github.com/jordanlanch/storefront/pkg/domain"
	"github.com/jordanlanch/storefront/pkg/models"
)

// toResource maps a Stripe subscription into the explicit shape returned to clients and fails
// when the payload is missing required fields.
func toResource(sub *stripe.Subscription) (*models.SubscriptionResource, error) {
	if sub == nil {
		return nil, domain.NewUnexpectedResponseError(nil)
	}

	res := &models.SubscriptionResource{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		res.CustomerID = sub.Customer.ID
	}
	if sub.Discount != nil && sub.Discount.Coupon != nil {
		res.CouponApplied = true
	}
	if sub.Items != nil {
		for _, it := range sub.Items.Data {
			if it == nil {
				continue
			}
			item := models.SubscriptionItemInfo{ID: it.ID}
			if it.Price != nil {
				item.PriceID = it.Price.ID
			}
			res.Items = append(res.Items, item)
		}
	}
	if inv := sub.LatestInvoice; inv != nil {
		res.LatestInvoice = &models.InvoiceInfo{ID: inv.ID, AmountDue: inv.AmountDue}
		if pi := inv.PaymentIntent; pi != nil {
			res.LatestInvoice.PaymentIntent = &models.PaymentIntentInfo{
				ID:           pi.ID,
				Status:       string(pi.Status),
				ClientSecret: pi.ClientSecret,
			}
			if pi.Status == stripe.PaymentIntentStatusRequiresAction {
				res.PendingAuthentication = &models.PendingAuthentication{ClientSecret: pi.ClientSecret}
			}
		}
	}

	if err := res.Validate(); err != nil {
		return nil, domain.NewUnexpectedResponseError(err)
	}
	return res, nil
}

func customerEmail(sub *stripe.Subscription) string {
	if sub == nil || sub.Customer == nil {
		return ""
	}
	return sub.Customer.Email
}
