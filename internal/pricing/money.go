package pricing

import (
	"github.com/shopspring/decimal"

	"partsmarket/internal/domain"
)

// FractionDigits is the number of decimals amounts are rendered with.
const FractionDigits = 2

// Round rounds an amount to cents using banker's rounding (half-even).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(FractionDigits)
}

// Cents converts an amount to integer minor units after rounding.
func Cents(d decimal.Decimal) int64 {
	return Round(d).Shift(FractionDigits).IntPart()
}

// Format renders an amount with exactly two decimals.
func Format(d decimal.Decimal) string {
	return Round(d).StringFixed(FractionDigits)
}

// RoundSnapshot returns a copy of snap with every amount rounded to cents.
func RoundSnapshot(snap domain.PricingSnapshot) domain.PricingSnapshot {
	return domain.PricingSnapshot{
		PartsSubtotal:  Round(snap.PartsSubtotal),
		LaborSubtotal:  Round(snap.LaborSubtotal),
		Subtotal:       Round(snap.Subtotal),
		ShippingFee:    Round(snap.ShippingFee),
		TaxAmount:      Round(snap.TaxAmount),
		DiscountAmount: Round(snap.DiscountAmount),
		GrandTotal:     Round(snap.GrandTotal),
		TotalSavings:   Round(snap.TotalSavings),
		PromoCode:      snap.PromoCode,
	}
}
