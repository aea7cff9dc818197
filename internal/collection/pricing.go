package collection

import (
	"github.com/shopspring/decimal"
)

// PriceFact is one variant's price pair as the catalog reports it.
type PriceFact struct {
	CurrentCents   int64
	CompareAtCents *int64
}

// PriceSummary aggregates the price range of a set of variants for listing
// surfaces. MinPrice and MaxOldPrice are nil when no input contributes to
// them. HasDiscount holds only when both values exist and the old price
// strictly exceeds the current minimum; equal prices are not a discount.
type PriceSummary struct {
	MinPrice    *decimal.Decimal
	MaxOldPrice *decimal.Decimal
	HasDiscount bool
}

// Totals are the aggregate quantity and price of a collection, for badges
// and cart summaries.
type Totals struct {
	TotalQuantity int
	TotalPrice    decimal.Decimal
}

var centsPerUnit = decimal.NewFromInt(100)

// CentsToDecimal converts an integer cent amount into a decimal currency
// value.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsPerUnit)
}

// SummarizePrices folds variant price facts into a PriceSummary. Facts with
// a nil compare-at price still contribute to MinPrice; facts are assumed
// pre-validated (non-negative) by the catalog boundary.
func SummarizePrices(facts []PriceFact) PriceSummary {
	var summary PriceSummary
	var minCents, maxOldCents int64
	haveMin, haveOld := false, false

	for _, fact := range facts {
		if !haveMin || fact.CurrentCents < minCents {
			minCents = fact.CurrentCents
			haveMin = true
		}
		if fact.CompareAtCents == nil {
			continue
		}
		if !haveOld || *fact.CompareAtCents > maxOldCents {
			maxOldCents = *fact.CompareAtCents
			haveOld = true
		}
	}

	if haveMin {
		v := CentsToDecimal(minCents)
		summary.MinPrice = &v
	}
	if haveOld {
		v := CentsToDecimal(maxOldCents)
		summary.MaxOldPrice = &v
	}
	summary.HasDiscount = haveMin && haveOld && maxOldCents > minCents
	return summary
}

// ComputeTotals sums quantities and extended prices across line items.
func ComputeTotals(items []LineItem) Totals {
	totals := Totals{TotalPrice: decimal.Zero}
	for _, item := range items {
		totals.TotalQuantity += item.Quantity
		line := CentsToDecimal(item.Price.CurrentCents).Mul(decimal.NewFromInt(int64(item.Quantity)))
		totals.TotalPrice = totals.TotalPrice.Add(line)
	}
	return totals
}
