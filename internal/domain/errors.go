package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	ErrInvalidPromoCode       = errors.New("invalid promo code")
	ErrInvalidLineItem        = errors.New("invalid line item")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrCheckoutInProgress     = errors.New("checkout already in progress")
	ErrInvalidCheckout        = errors.New("invalid checkout request")
	ErrInvalidBid             = errors.New("invalid bid")
	ErrBidNotFound            = errors.New("bid not found")
	ErrAuctionExpired         = errors.New("auction expired")
	ErrAuctionAlreadyResolved = errors.New("auction already resolved")
)

// OrderServiceErrorKind classifies Order Service failures.
type OrderServiceErrorKind string

const (
	OrderServiceTransport  OrderServiceErrorKind = "transport"
	OrderServiceValidation OrderServiceErrorKind = "validation"
	OrderServiceRemote     OrderServiceErrorKind = "remote"
)

// OrderServiceError is returned when the Order Service rejects or cannot be
// reached for an order.
type OrderServiceError struct {
	Kind    OrderServiceErrorKind
	Status  int
	Message string
	Err     error
}

func (e *OrderServiceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("order service %s error (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("order service %s error: %s", e.Kind, msg)
}

func (e *OrderServiceError) Unwrap() error {
	return e.Err
}
