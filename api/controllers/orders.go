package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shopsterhq/shopster-backend/api/middleware"
	"github.com/shopsterhq/shopster-backend/api/responses"
	"github.com/shopsterhq/shopster-backend/api/validators"
	"github.com/shopsterhq/shopster-backend/internal/checkout"
	ordersvc "github.com/shopsterhq/shopster-backend/internal/orders"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
)

type placeOrderRequest struct {
	CartID           string           `json:"cart_id" validate:"required,uuid"`
	CustomerEmail    string           `json:"customer_email" validate:"required,email"`
	CustomerPhone    string           `json:"customer_phone"`
	ShippingFullName string           `json:"shipping_full_name" validate:"required,max=255"`
	ShippingAddress  string           `json:"shipping_address" validate:"required"`
	ShippingCity     string           `json:"shipping_city" validate:"required,max=255"`
	ShippingPostcode string           `json:"shipping_postcode"`
	ShippingCountry  string           `json:"shipping_country"`
	Notes            string           `json:"notes"`
	ShippingAmount   *decimal.Decimal `json:"shipping_amount"`
}

type placeOrderResponse struct {
	orderResponse
	RequiresAccountActivation bool   `json:"requires_account_activation"`
	ActivationEmail           string `json:"activation_email,omitempty"`
}

// OrdersPlace drives the checkout engine: consume the cart, create the order,
// fan out notifications.
func OrdersPlace(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cartID, err := parseUUIDString(payload.CartID, "cart_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkout.PlaceOrderInput{
			CartID:           cartID,
			UserID:           requesterUserID(r),
			CustomerEmail:    payload.CustomerEmail,
			CustomerPhone:    payload.CustomerPhone,
			ShippingFullName: payload.ShippingFullName,
			ShippingAddress:  payload.ShippingAddress,
			ShippingCity:     payload.ShippingCity,
			ShippingPostcode: payload.ShippingPostcode,
			ShippingCountry:  payload.ShippingCountry,
			Notes:            payload.Notes,
		}
		if payload.ShippingAmount != nil {
			input.ShippingAmount = *payload.ShippingAmount
		}

		placed, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, placeOrderResponse{
			orderResponse:             newOrderResponse(placed.Order),
			RequiresAccountActivation: placed.RequiresAccountActivation,
			ActivationEmail:           placed.ActivationEmail,
		})
	}
}

func requesterFromRequest(r *http.Request) ordersvc.Requester {
	requester := ordersvc.Requester{IsStaff: middleware.IsStaffFromContext(r.Context())}
	if id := requesterUserID(r); id != nil {
		requester.UserID = *id
	}
	return requester
}

// OrdersList returns the requester's order history; staff can widen the scope
// with user_id and status filters.
func OrdersList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := ordersvc.ListFilters{Status: strings.TrimSpace(r.URL.Query().Get("status"))}
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			userID, err := parseUUIDString(raw, "user_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			filters.UserID = &userID
		}

		page, err := svc.List(r.Context(), requesterFromRequest(r), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, len(page.Items))
		for i := range page.Items {
			items[i] = newOrderResponse(&page.Items[i])
		}
		responses.WriteSuccess(w, orderPageResponse{Items: items, NextCursor: page.NextCursor})
	}
}

func OrdersGet(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), requesterFromRequest(r), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
