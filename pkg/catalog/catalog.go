// Package catalog holds the immutable list of purchasable subscription products and the
// volume discount policy that applies to them.
package catalog

import (
	"context"
	"fmt"
)

// Item is one purchasable product. ID is the billing provider's price id.
type Item struct {
	ID           string `json:"id" yaml:"price_id"`
	Title        string `json:"title" yaml:"title"`
	UnitAmount   int64  `json:"unit_amount" yaml:"unit_amount"`
	DisplayAsset string `json:"display_asset" yaml:"emoji"`
}

// DiscountPolicy grants Rate off the subtotal once at least MinQualifyingCount products are chosen.
type DiscountPolicy struct {
	MinQualifyingCount int     `json:"min_qualifying_count"`
	Rate               float64 `json:"rate"`
}

// Validate checks the policy bounds.
func (p DiscountPolicy) Validate() error {
	if p.MinQualifyingCount < 1 {
		return fmt.Errorf("min qualifying count must be at least 1, got %d", p.MinQualifyingCount)
	}
	if p.Rate < 0 || p.Rate >= 1 {
		return fmt.Errorf("discount rate must be in [0,1), got %v", p.Rate)
	}
	return nil
}

// Eligible reports whether count distinct products qualify for the discount.
func (p DiscountPolicy) Eligible(count int) bool {
	return count >= p.MinQualifyingCount
}

// Source loads catalog items from somewhere.
type Source interface {
	Load(ctx context.Context) ([]Item, error)
}

// Catalog is read-only once built.
type Catalog struct {
	items     []Item
	index     map[string]int
	policy    DiscountPolicy
	publicKey string
}

// New validates items and policy and builds a catalog preserving item order.
func New(items []Item, policy DiscountPolicy, publicKey string) (*Catalog, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	c := &Catalog{
		items:     make([]Item, 0, len(items)),
		index:     make(map[string]int, len(items)),
		policy:    policy,
		publicKey: publicKey,
	}
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("catalog item %q has no price id", it.Title)
		}
		if it.UnitAmount < 0 {
			return nil, fmt.Errorf("catalog item %s has negative unit amount %d", it.ID, it.UnitAmount)
		}
		if _, dup := c.index[it.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog item %s", it.ID)
		}
		c.index[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

// Load fetches items from src once and builds the catalog.
func Load(ctx context.Context, src Source, policy DiscountPolicy, publicKey string) (*Catalog, error) {
	items, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return New(items, policy, publicKey)
}

// Items returns a copy of the items in insertion order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup finds an item by price id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Policy returns the discount policy.
func (c *Catalog) Policy() DiscountPolicy { return c.policy }

// PublicKey returns the publishable tokenization key.
func (c *Catalog) PublicKey() string { return c.publicKey }
