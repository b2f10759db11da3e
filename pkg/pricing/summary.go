// Package pricing derives monthly totals from a product selection.
//
// All amounts are integer minor units. Rounding to whole currency units happens only when
// an amount is rendered (see FormatMonthly).
package pricing

import (
	"math/big"

	"github.com/jordanlanch/storefront/pkg/catalog"
)

// LineItem is one priced product in a summary.
type LineItem struct {
	PriceID    string
	Title      string
	UnitAmount int64
}

// Summary is the derived price of a selection.
type Summary struct {
	LineItems       []LineItem
	Subtotal        int64
	Discount        int64
	Total           int64
	DiscountApplied bool
}

// Empty reports the no-selection state.
func (s Summary) Empty() bool {
	return len(s.LineItems) == 0
}

// ComputeSummary prices selected under policy.
func ComputeSummary(selected []catalog.Item, policy catalog.DiscountPolicy) Summary {
	var sum Summary
	if len(selected) == 0 {
		return sum
	}

	sum.LineItems = make([]LineItem, len(selected))
	for i, it := range selected {
		sum.LineItems[i] = LineItem{PriceID: it.ID, Title: it.Title, UnitAmount: it.UnitAmount}
		sum.Subtotal += it.UnitAmount
	}

	if policy.Eligible(len(selected)) {
		sum.DiscountApplied = true
		sum.Discount = Discount(sum.Subtotal, policy)
	}
	sum.Total = sum.Subtotal - sum.Discount
	return sum
}

// Discount returns subtotal x rate rounded half-up to the nearest minor unit. The product is
// taken over the exact binary value of the rate, so no precision is lost before rounding.
func Discount(subtotal int64, policy catalog.DiscountPolicy) int64 {
	if subtotal <= 0 || policy.Rate <= 0 {
		return 0
	}
	r := new(big.Rat).SetFloat64(policy.Rate)
	r.Mul(r, new(big.Rat).SetInt64(subtotal))
	r.Add(r, big.NewRat(1, 2))
	return new(big.Int).Quo(r.Num(), r.Denom()).Int64()
}
