package controllers

import (
	"net/http"

	"github.com/angelmondragon/assetcart/api/middleware"
	"github.com/angelmondragon/assetcart/api/responses"
	"github.com/angelmondragon/assetcart/api/validators"
	"github.com/angelmondragon/assetcart/internal/checkout"
	"github.com/angelmondragon/assetcart/internal/storefront"
	"github.com/angelmondragon/assetcart/pkg/enums"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/types"
)

// shippingRequest carries the form as typed; blank fields are only refused
// when advancing past the shipping step.
type shippingRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

type paymentRequest struct {
	PaymentMethod string `json:"payment_method" validate:"notblank"`
}

// CheckoutBegin enters the workflow with the current cart.
func CheckoutBegin(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		view, err := svc.BeginCheckout(r.Context(), middleware.SessionIDFromContext(r.Context()), middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func CheckoutFetch(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionAction(svc, logg, func(r *http.Request, shopperID string) (checkout.View, error) {
		return svc.Checkout(r.Context(), shopperID)
	})
}

func CheckoutUpdateShipping(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionAction(svc, logg, func(r *http.Request, shopperID string) (checkout.View, error) {
		var payload shippingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return checkout.View{}, err
		}
		return svc.UpdateShipping(r.Context(), shopperID, types.ShippingInfo(payload))
	})
}

func CheckoutSelectPayment(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionAction(svc, logg, func(r *http.Request, shopperID string) (checkout.View, error) {
		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return checkout.View{}, err
		}
		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			return checkout.View{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").WithDetails(map[string]string{
				"payment_method": "must be one of crypto, card, paypal",
			})
		}
		return svc.SelectPayment(r.Context(), shopperID, method)
	})
}

func CheckoutAdvance(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionAction(svc, logg, func(r *http.Request, shopperID string) (checkout.View, error) {
		return svc.Advance(r.Context(), shopperID)
	})
}

func CheckoutBack(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return sessionAction(svc, logg, func(r *http.Request, shopperID string) (checkout.View, error) {
		return svc.Back(r.Context(), shopperID)
	})
}

// CheckoutSubmit places the order. Repeating the call after success returns
// the same order.
func CheckoutSubmit(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		order, err := svc.Submit(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// CheckoutAbort discards the session when the shopper navigates away.
func CheckoutAbort(svc storefront.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		if err := svc.Abort(r.Context(), middleware.SessionIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func sessionAction(svc storefront.Service, logg *logger.Logger, fn func(r *http.Request, shopperID string) (checkout.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront service unavailable"))
			return
		}
		view, err := fn(r, middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
