package domain

import (
	"strings"
	"time"
)

// PaymentMethod selects how the buyer pays; settlement happens elsewhere.
type PaymentMethod string

const (
	PaymentCard      PaymentMethod = "card"
	PaymentPayAtShop PaymentMethod = "pay_at_shop"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentPayAtShop
}

// Address is a postal address attached to an order.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// IsZero reports whether no meaningful address field is set.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Line1) == "" && strings.TrimSpace(a.City) == "" && strings.TrimSpace(a.PostalCode) == ""
}

// OrderPayload is the immutable record handed to the Order Service.
type OrderPayload struct {
	IdempotencyKey  string          `json:"idempotencyKey"`
	SessionID       string          `json:"sessionId"`
	Currency        string          `json:"currency"`
	Items           []LineItem      `json:"items"`
	Pricing         PricingSnapshot `json:"pricing"`
	ShippingAddress Address         `json:"shippingAddress"`
	BillingAddress  Address         `json:"billingAddress"`
	Notes           string          `json:"notes,omitempty"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
}

// OrderConfirmation is what the Order Service returns on success.
type OrderConfirmation struct {
	OrderNumber string    `json:"orderNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Order is the result of a successful checkout.
type Order struct {
	Number          string          `json:"orderNumber"`
	Currency        string          `json:"currency"`
	Items           []LineItem      `json:"items"`
	Pricing         PricingSnapshot `json:"pricing"`
	ShippingAddress Address         `json:"shippingAddress"`
	BillingAddress  Address         `json:"billingAddress"`
	Notes           string          `json:"notes,omitempty"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	CreatedAt       time.Time       `json:"createdAt"`
}
