package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/assetcart/internal/cart"
)

// TaxRate is the flat approximation applied to every subtotal.
var TaxRate = decimal.RequireFromString("0.05")

// displayPlaces is the only rounding step; everything else keeps full precision.
const displayPlaces = 2

// Breakdown holds full-precision amounts for a line item sequence.
type Breakdown struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Display is the presentation form of a Breakdown, rounded to cents.
type Display struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
	TaxRate  string `json:"tax_rate"`
}

func Subtotal(items []cart.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Price)
	}
	return sum
}

func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate)
}

func Total(items []cart.LineItem) decimal.Decimal {
	subtotal := Subtotal(items)
	return subtotal.Add(Tax(subtotal))
}

// Compute derives all three amounts in one pass.
func Compute(items []cart.LineItem) Breakdown {
	subtotal := Subtotal(items)
	tax := Tax(subtotal)
	return Breakdown{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// Display rounds for presentation only.
func (b Breakdown) Display() Display {
	return Display{
		Subtotal: b.Subtotal.StringFixed(displayPlaces),
		Tax:      b.Tax.StringFixed(displayPlaces),
		Total:    b.Total.StringFixed(displayPlaces),
		TaxRate:  TaxRate.String(),
	}
}
