package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/assetcart/internal/cart"
	"github.com/angelmondragon/assetcart/pkg/db/models"
	"github.com/angelmondragon/assetcart/pkg/enums"
	"github.com/angelmondragon/assetcart/pkg/types"
)

// Order is the read-only record produced by one successful submission.
type Order struct {
	ID        uuid.UUID           `json:"id"`
	ShopperID string              `json:"shopper_id"`
	Items     []cart.LineItem     `json:"items"`
	Shipping  types.ShippingInfo  `json:"shipping"`
	Payment   enums.PaymentMethod `json:"payment_method"`
	Subtotal  decimal.Decimal     `json:"subtotal"`
	Tax       decimal.Decimal     `json:"tax"`
	Total     decimal.Decimal     `json:"total"`
	PlacedAt  time.Time           `json:"placed_at"`
}

// IsZero reports whether o is the empty Order.
func (o Order) IsZero() bool {
	return o.ID == uuid.Nil
}

func (o Order) toModel() *models.OrderRecord {
	record := &models.OrderRecord{
		ID:            o.ID,
		ShopperID:     o.ShopperID,
		FullName:      o.Shipping.FullName,
		Email:         o.Shipping.Email,
		Address:       o.Shipping.Address,
		City:          o.Shipping.City,
		PostalCode:    o.Shipping.PostalCode,
		PaymentMethod: o.Payment,
		Status:        enums.OrderStatusPlaced,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Total:         o.Total,
		PlacedAt:      o.PlacedAt,
		Items:         make([]models.OrderLineItem, len(o.Items)),
	}
	for i, item := range o.Items {
		record.Items[i] = models.OrderLineItem{
			OrderID:   o.ID,
			LineNo:    i,
			ProductID: item.ID,
			Name:      item.Name,
			Price:     item.Price,
			Image:     item.Image,
			Tags:      item.Tags.Clone(),
			AddedAt:   item.AddedAt,
		}
	}
	return record
}

func fromModel(record *models.OrderRecord) Order {
	order := Order{
		ID:        record.ID,
		ShopperID: record.ShopperID,
		Shipping: types.ShippingInfo{
			FullName:   record.FullName,
			Email:      record.Email,
			Address:    record.Address,
			City:       record.City,
			PostalCode: record.PostalCode,
		},
		Payment:  record.PaymentMethod,
		Subtotal: record.Subtotal,
		Tax:      record.Tax,
		Total:    record.Total,
		PlacedAt: record.PlacedAt,
		Items:    make([]cart.LineItem, len(record.Items)),
	}
	for i, item := range record.Items {
		order.Items[i] = cart.LineItem{
			Product: cart.Product{
				ID:    item.ProductID,
				Name:  item.Name,
				Price: item.Price,
				Image: item.Image,
				Tags:  item.Tags,
			},
			AddedAt: item.AddedAt,
		}
	}
	return order
}
