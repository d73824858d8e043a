package domain

import "github.com/shopspring/decimal"

// PromoCode is a resolved promo code with its percentage discount (0-100).
type PromoCode struct {
	Code       string          `json:"code"`
	Percentage decimal.Decimal `json:"percentage"`
}

// PricingSnapshot holds the derived totals of a cart. Values are unrounded;
// rounding happens when a snapshot is rendered.
type PricingSnapshot struct {
	PartsSubtotal  decimal.Decimal `json:"partsSubtotal"`
	LaborSubtotal  decimal.Decimal `json:"laborSubtotal"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	TotalSavings   decimal.Decimal `json:"totalSavings"`
	PromoCode      string          `json:"promoCode,omitempty"`
}
