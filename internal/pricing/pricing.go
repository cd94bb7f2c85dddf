package pricing

import (
	"github.com/shopspring/decimal"

	"ticketing/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Engine computes the final price of a ticket. All arithmetic is exact
// decimal; results are half-up rounded to 2 places and floored at 0.00.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// FinalPrice applies the promo discount (promo may be nil) to the base price.
func (e *Engine) FinalPrice(base decimal.Decimal, promo *models.PromoCode) decimal.Decimal {
	if promo == nil {
		return clampToZero(base.Round(2))
	}

	var final decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountPercent:
		final = base.Mul(hundred.Sub(promo.Value)).Div(hundred)
	case models.DiscountFixed:
		final = base.Sub(promo.Value)
	default:
		final = base
	}
	return clampToZero(final.Round(2))
}

func clampToZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
