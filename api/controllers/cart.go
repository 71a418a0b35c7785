package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/assetcart/api/middleware"
	"github.com/angelmondragon/assetcart/api/responses"
	"github.com/angelmondragon/assetcart/api/validators"
	"github.com/angelmondragon/assetcart/internal/cart"
	"github.com/angelmondragon/assetcart/internal/storefront"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/types"
)

type addItemRequest struct {
	ID    string          `json:"id" validate:"notblank"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image,omitempty"`
	Tags  []string        `json:"tags,omitempty"`
}

func (r addItemRequest) product() cart.Product {
	return cart.Product{
		ID:    r.ID,
		Name:  r.Name,
		Price: r.Price,
		Image: r.Image,
		Tags:  types.StringList(r.Tags).Clone(),
	}
}

// CartFetch returns the shopper's cart with display totals.
func CartFetch(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		view, err := svc.Cart(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem appends a catalog product to the cart.
func CartAddItem(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddToCart(r.Context(), middleware.SessionIDFromContext(r.Context()), payload.product())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Outcome == cart.OutcomeQueued {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// CartRemoveItem deletes the line at {index}. A stale index answers 200 with
// an ignored outcome.
func CartRemoveItem(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}

		index, err := validators.URLParamInt(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RemoveFromCart(r.Context(), middleware.SessionIDFromContext(r.Context()), index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if result.Outcome == cart.OutcomeQueued {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
