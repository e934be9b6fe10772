package pricing

import (
	"github.com/shopspring/decimal"

	"rfpquote/internal"
)

// DiscountFor returns the percent of the first tier whose minimum is at most qty.
// tiers must be in descending minimum order, as catalog.Reference keeps them.
func DiscountFor(tiers []internal.DiscountTier, qty decimal.Decimal) decimal.Decimal {
	for _, t := range tiers {
		if t.MinQuantity.LessThanOrEqual(qty) {
			return t.DiscountPercent
		}
	}
	return decimal.Zero
}

// DiscountedUnitPrice applies a percent discount to a base price.
func DiscountedUnitPrice(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(decimal.NewFromInt(1).Sub(percent.Shift(-2)))
}
