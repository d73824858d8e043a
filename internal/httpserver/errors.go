package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"partsmarket/internal/auction"
	"partsmarket/internal/domain"
	cartsvc "partsmarket/internal/service/cart"
	quotesvc "partsmarket/internal/service/quote"
)

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{StatusCode: status, Error: code, Message: message})
}

// writeError maps service errors onto HTTP statuses.
func (h *handlers) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	abortWithError(c, status, code, message)
}

func classify(err error) (int, string) {
	var osErr *domain.OrderServiceError
	switch {
	case errors.As(err, &osErr):
		return http.StatusBadGateway, "order_service_" + string(osErr.Kind)
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, domain.ErrInvalidLineItem),
		errors.Is(err, domain.ErrInvalidCheckout),
		errors.Is(err, domain.ErrInvalidBid),
		errors.Is(err, cartsvc.ErrInvalidAction),
		errors.Is(err, quotesvc.ErrInvalidQuote):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrInvalidPromoCode):
		return http.StatusUnprocessableEntity, "invalid_promo_code"
	case errors.Is(err, domain.ErrBidNotFound):
		return http.StatusNotFound, "bid_not_found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAuctionExpired):
		return http.StatusConflict, "auction_expired"
	case errors.Is(err, domain.ErrAuctionAlreadyResolved):
		return http.StatusConflict, "auction_already_resolved"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, auction.ErrStopped):
		return http.StatusServiceUnavailable, "shutting_down"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
