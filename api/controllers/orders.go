package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/assetcart/api/middleware"
	"github.com/angelmondragon/assetcart/api/responses"
	"github.com/angelmondragon/assetcart/api/validators"
	"github.com/angelmondragon/assetcart/internal/cart"
	"github.com/angelmondragon/assetcart/internal/orders"
	"github.com/angelmondragon/assetcart/internal/pricing"
	"github.com/angelmondragon/assetcart/internal/storefront"
	"github.com/angelmondragon/assetcart/pkg/enums"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/types"
)

type orderResponse struct {
	ID        uuid.UUID           `json:"id"`
	Status    enums.OrderStatus   `json:"status"`
	Items     []cart.LineItem     `json:"items"`
	Shipping  types.ShippingInfo  `json:"shipping"`
	Payment   enums.PaymentMethod `json:"payment_method"`
	Pricing   pricing.Display     `json:"pricing"`
	PlacedAt  time.Time           `json:"placed_at"`
	ItemCount int                 `json:"item_count"`
}

func newOrderResponse(order orders.Order) orderResponse {
	breakdown := pricing.Breakdown{Subtotal: order.Subtotal, Tax: order.Tax, Total: order.Total}
	return orderResponse{
		ID:        order.ID,
		Status:    enums.OrderStatusPlaced,
		Items:     order.Items,
		Shipping:  order.Shipping,
		Payment:   order.Payment,
		Pricing:   breakdown.Display(),
		PlacedAt:  order.PlacedAt,
		ItemCount: len(order.Items),
	}
}

// OrderDetail serves the confirmation view for an order placed by this shopper.
func OrderDetail(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Order(r.Context(), middleware.SessionIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
