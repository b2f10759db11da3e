package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/price"
)

// LookupKeySuffix is appended to each product name to form its price lookup key.
const LookupKeySuffix = "-monthly-usd"

// PriceLister lists prices by lookup key with their product expanded.
type PriceLister interface {
	ListPrices(ctx context.Context, lookupKeys []string) ([]*stripe.Price, error)
}

// StripePriceLister adapts the stripe price resource to PriceLister.
type StripePriceLister struct {
	Prices *price.Client
}

// ListPrices implements PriceLister
func (l StripePriceLister) ListPrices(ctx context.Context, lookupKeys []string) ([]*stripe.Price, error) {
	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice(lookupKeys),
	}
	params.Context = ctx
	params.AddExpand("data.product")

	var out []*stripe.Price
	iter := l.Prices.List(params)
	for iter.Next() {
		out = append(out, iter.Price())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// StripeSource loads items from the billing provider's prices, one per configured product.
// Title and display asset come from the product metadata keys "title" and "emoji".
type StripeSource struct {
	lister   PriceLister
	products []string
}

// NewStripeSource creates a source for the given product names.
func NewStripeSource(lister PriceLister, products []string) *StripeSource {
	return &StripeSource{lister: lister, products: products}
}

// Load implements Source. Items follow the configured product order.
func (s *StripeSource) Load(ctx context.Context) ([]Item, error) {
	if len(s.products) == 0 {
		return nil, fmt.Errorf("no catalog products configured")
	}

	keys := make([]string, len(s.products))
	order := make(map[string]int, len(s.products))
	for i, p := range s.products {
		keys[i] = p + LookupKeySuffix
		order[keys[i]] = i
	}

	prices, err := s.lister.ListPrices(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}

	items := make([]Item, 0, len(prices))
	rank := make(map[string]int, len(prices))
	for _, p := range prices {
		if p == nil || p.ID == "" {
			return nil, fmt.Errorf("price without id in listing")
		}
		it := Item{ID: p.ID, UnitAmount: p.UnitAmount}
		if p.Product != nil {
			it.Title = p.Product.Metadata["title"]
			it.DisplayAsset = p.Product.Metadata["emoji"]
			if it.Title == "" {
				it.Title = p.Product.Name
			}
		}
		r, ok := order[p.LookupKey]
		if !ok {
			r = len(order)
		}
		rank[p.ID] = r
		items = append(items, it)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return rank[items[i].ID] < rank[items[j].ID]
	})
	return items, nil
}
