package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/cart"
	"campusmarket-be/internal/db"
	"campusmarket-be/internal/delivery"
	"campusmarket-be/internal/inventory"
	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/order"
	"campusmarket-be/internal/product"

	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

type errorMapping struct {
	target error
	status int
	code   string
}

// domainErrors carry messages meant for the caller; their text is returned
// unchanged.
var domainErrors = []errorMapping{
	{inventory.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{product.ErrProductUnavailable, http.StatusConflict, "product_unavailable"},
	{product.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{cart.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{cart.ErrCartItemNotFound, http.StatusNotFound, "cart_item_not_found"},
	{cart.ErrOwnProduct, http.StatusBadRequest, "own_product"},
	{delivery.ErrCourierBusy, http.StatusConflict, "courier_busy"},
	{delivery.ErrAlreadyTaken, http.StatusConflict, "already_taken"},
	{delivery.ErrNotFoundOrAlreadyCompleted, http.StatusNotFound, "not_found_or_already_completed"},
	{delivery.ErrInvalidRating, http.StatusBadRequest, "invalid_rating"},
	{delivery.ErrDeliveryNotFound, http.StatusNotFound, "delivery_not_found"},
	{delivery.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{order.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{order.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{order.ErrNoPickupOrderToConfirm, http.StatusConflict, "no_pickup_order"},
	{order.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{order.ErrInvalidDeliveryOption, http.StatusBadRequest, "invalid_delivery_option"},
	{order.ErrInvalidDeliveryFee, http.StatusBadRequest, "invalid_delivery_fee"},
	{auth.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
}

// respondDomainError maps err onto a status. Storage errors are logged and
// replaced by a generic message.
func respondDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}

	log := logger.FromCtx(ctx)
	switch {
	case db.IsTransient(err):
		log.Warn("transient storage failure", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "transient_failure", "temporarily unavailable, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
