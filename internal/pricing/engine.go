// Package pricing turns cart line items into a pricing snapshot and resolves
// promo codes. Everything here is pure; no I/O.
package pricing

import (
	"github.com/shopspring/decimal"

	"partsmarket/internal/config"
	"partsmarket/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Engine computes pricing snapshots under a fixed policy.
type Engine struct {
	threshold decimal.Decimal
	flatFee   decimal.Decimal
	taxRate   decimal.Decimal
	currency  string
}

// NewEngine builds an Engine from the pricing policy.
func NewEngine(p config.Pricing) *Engine {
	return &Engine{
		threshold: p.FreeShippingThreshold,
		flatFee:   p.FlatShippingFee,
		taxRate:   p.TaxRate,
		currency:  p.Currency,
	}
}

// Currency is the ISO code all amounts are expressed in.
func (e *Engine) Currency() string {
	return e.currency
}

// Subtotal sums price x quantity over every item. Rows with a non-positive
// quantity contribute nothing.
func Subtotal(items []domain.LineItem) decimal.Decimal {
	parts, labor := subtotals(items)
	return parts.Add(labor)
}

func subtotals(items []domain.LineItem) (parts, labor decimal.Decimal) {
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		switch item.Kind {
		case domain.KindPart:
			parts = parts.Add(item.Total())
		case domain.KindLabor:
			labor = labor.Add(item.Total())
		}
	}
	return parts, labor
}

// Compute derives the full snapshot for items with an optional promo.
func (e *Engine) Compute(items []domain.LineItem, promo *domain.PromoCode) domain.PricingSnapshot {
	parts, labor := subtotals(items)
	subtotal := parts.Add(labor)

	snap := domain.PricingSnapshot{
		PartsSubtotal: parts,
		LaborSubtotal: labor,
		Subtotal:      subtotal,
		ShippingFee:   e.shippingFee(items, parts),
		// Tax is charged on the pre-discount subtotal; shipping is not taxed.
		TaxAmount: subtotal.Mul(e.taxRate),
	}
	if promo != nil {
		snap.PromoCode = promo.Code
		snap.DiscountAmount = subtotal.Mul(promo.Percentage).Div(hundred)
	}

	total := subtotal.Add(snap.ShippingFee).Add(snap.TaxAmount).Sub(snap.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	snap.GrandTotal = total
	snap.TotalSavings = markdownSavings(items).Add(snap.DiscountAmount)
	return snap
}

func (e *Engine) shippingFee(items []domain.LineItem, partsSubtotal decimal.Decimal) decimal.Decimal {
	hasParts := false
	for _, item := range items {
		if item.Kind == domain.KindPart && item.Quantity > 0 {
			hasParts = true
			break
		}
	}
	if !hasParts || partsSubtotal.GreaterThan(e.threshold) {
		return decimal.Zero
	}
	return e.flatFee
}

func markdownSavings(items []domain.LineItem) decimal.Decimal {
	savings := decimal.Zero
	for _, item := range items {
		if item.Kind != domain.KindPart || item.Quantity <= 0 || item.OriginalPrice == nil {
			continue
		}
		if !item.OriginalPrice.GreaterThan(item.UnitPrice) {
			continue
		}
		per := item.OriginalPrice.Sub(item.UnitPrice)
		savings = savings.Add(per.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return savings
}
