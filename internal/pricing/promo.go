package pricing

import (
	"github.com/shopspring/decimal"

	"partsmarket/internal/domain"
)

// Resolver looks promo codes up in a fixed table. Matching is exact and
// case-sensitive.
type Resolver struct {
	table map[string]decimal.Decimal
}

// NewResolver copies table so later edits by the caller have no effect.
func NewResolver(table map[string]decimal.Decimal) *Resolver {
	copied := make(map[string]decimal.Decimal, len(table))
	for code, pct := range table {
		copied[code] = pct
	}
	return &Resolver{table: copied}
}

// Resolve returns the promo for code or domain.ErrInvalidPromoCode.
func (r *Resolver) Resolve(code string) (domain.PromoCode, error) {
	pct, ok := r.table[code]
	if !ok || code == "" {
		return domain.PromoCode{}, domain.ErrInvalidPromoCode
	}
	return domain.PromoCode{Code: code, Percentage: pct}, nil
}
