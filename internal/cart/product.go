package cart

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/types"
)

// Product is a catalog record as handed to the cart. The catalog owns it;
// the cart stores full copies, not references.
type Product struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Price decimal.Decimal  `json:"price"`
	Image string           `json:"image,omitempty"`
	Tags  types.StringList `json:"tags,omitempty"`
}

// Validate checks the fields the cart relies on.
func (p Product) Validate() error {
	details := map[string]string{}
	if strings.TrimSpace(p.ID) == "" {
		details["id"] = "is required"
	}
	if p.Price.IsNegative() {
		details["price"] = "must be non-negative"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(details)
	}
	return nil
}

func (p Product) clone() Product {
	p.Tags = p.Tags.Clone()
	return p
}

// LineItem is one Product added to the cart. Duplicates of the same product
// are separate line items and are removed by position.
type LineItem struct {
	Product
	AddedAt time.Time `json:"added_at"`
}

func (li LineItem) clone() LineItem {
	li.Product = li.Product.clone()
	return li
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.clone()
	}
	return out
}
