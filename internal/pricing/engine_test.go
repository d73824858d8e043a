package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsmarket/internal/config"
	"partsmarket/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func part(id, price string, qty int) domain.LineItem {
	return domain.LineItem{ID: id, Kind: domain.KindPart, UnitPrice: dec(price), Quantity: qty}
}

func labor(id, price string, qty int) domain.LineItem {
	return domain.LineItem{ID: id, Kind: domain.KindLabor, UnitPrice: dec(price), Quantity: qty}
}

func newTestEngine() *Engine {
	return NewEngine(config.DefaultPricing())
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestCompute_EndToEndScenario(t *testing.T) {
	items := []domain.LineItem{part("A", "50", 2), labor("B", "100", 1)}
	snap := newTestEngine().Compute(items, nil)

	assertAmount(t, "100", snap.PartsSubtotal)
	assertAmount(t, "100", snap.LaborSubtotal)
	assertAmount(t, "200", snap.Subtotal)
	assertAmount(t, "0", snap.ShippingFee)
	assertAmount(t, "16.00", snap.TaxAmount)
	assertAmount(t, "0", snap.DiscountAmount)
	assertAmount(t, "216.00", snap.GrandTotal)
	assert.Equal(t, "216.00", Format(snap.GrandTotal))
}

func TestCompute_FreeShippingThreshold(t *testing.T) {
	e := newTestEngine()

	above := e.Compute([]domain.LineItem{part("A", "75.01", 1)}, nil)
	assertAmount(t, "0", above.ShippingFee)

	below := e.Compute([]domain.LineItem{part("A", "74.99", 1)}, nil)
	assertAmount(t, "9.99", below.ShippingFee)

	exact := e.Compute([]domain.LineItem{part("A", "75.00", 1)}, nil)
	assertAmount(t, "9.99", exact.ShippingFee)
}

func TestCompute_LaborNeverShips(t *testing.T) {
	e := newTestEngine()
	snap := e.Compute([]domain.LineItem{labor("L", "40", 1)}, nil)
	assertAmount(t, "0", snap.ShippingFee)

	// Labor does not count toward the free shipping threshold.
	mixed := e.Compute([]domain.LineItem{part("A", "10", 1), labor("L", "500", 1)}, nil)
	assertAmount(t, "9.99", mixed.ShippingFee)

	empty := e.Compute(nil, nil)
	assertAmount(t, "0", empty.ShippingFee)
	assertAmount(t, "0", empty.GrandTotal)
}

func TestCompute_PromoDiscount(t *testing.T) {
	e := newTestEngine()
	promo := &domain.PromoCode{Code: "SAVE10", Percentage: dec("10")}
	snap := e.Compute([]domain.LineItem{part("A", "100", 1)}, promo)

	assertAmount(t, "100", snap.Subtotal)
	assertAmount(t, "10", snap.DiscountAmount)
	assertAmount(t, "8", snap.TaxAmount)
	assertAmount(t, "0", snap.ShippingFee)
	want := snap.Subtotal.Add(snap.ShippingFee).Add(snap.TaxAmount).Sub(dec("10"))
	assertAmount(t, want.String(), snap.GrandTotal)
	assertAmount(t, "98", snap.GrandTotal)
	assert.Equal(t, "SAVE10", snap.PromoCode)
}

func TestCompute_FullDiscountNeverNegative(t *testing.T) {
	p := config.DefaultPricing()
	p.TaxRate = decimal.Zero
	e := NewEngine(p)
	promo := &domain.PromoCode{Code: "FREE", Percentage: dec("100")}
	snap := e.Compute([]domain.LineItem{labor("L", "80", 1)}, promo)
	assertAmount(t, "0", snap.GrandTotal)
	assert.False(t, snap.GrandTotal.IsNegative())
}

func TestCompute_TotalSavings(t *testing.T) {
	items := []domain.LineItem{
		{ID: "A", Kind: domain.KindPart, UnitPrice: dec("40"), OriginalPrice: decPtr("50"), Quantity: 2},
		{ID: "B", Kind: domain.KindPart, UnitPrice: dec("30"), OriginalPrice: decPtr("25"), Quantity: 1},
		{ID: "L", Kind: domain.KindLabor, UnitPrice: dec("90"), OriginalPrice: decPtr("120"), Quantity: 1},
	}
	promo := &domain.PromoCode{Code: "SAVE10", Percentage: dec("10")}
	snap := newTestEngine().Compute(items, promo)
	// markdown 2 x 10 = 20, plus 10% of 200
	assertAmount(t, "40", snap.TotalSavings)
}

func TestCompute_NoIntermediateRounding(t *testing.T) {
	items := make([]domain.LineItem, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		items = append(items, part(id, "0.333", 1))
	}
	snap := newTestEngine().Compute(items, nil)
	assertAmount(t, "0.999", snap.PartsSubtotal)
	assert.Equal(t, "1.00", Format(snap.PartsSubtotal))
}

func TestSubtotal_OrderIndependent(t *testing.T) {
	items := []domain.LineItem{part("a", "19.99", 3), part("b", "0.01", 7), part("c", "250.50", 1), labor("d", "65", 2)}
	reversed := []domain.LineItem{items[3], items[2], items[1], items[0]}

	want := dec("19.99").Mul(dec("3")).Add(dec("0.07")).Add(dec("250.50")).Add(dec("130"))
	assertAmount(t, want.String(), Subtotal(items))
	assertAmount(t, want.String(), Subtotal(reversed))

	e := newTestEngine()
	assertAmount(t, e.Compute(items, nil).PartsSubtotal.String(), e.Compute(reversed, nil).PartsSubtotal)
}

func TestSubtotal_SkipsNonPositiveQuantities(t *testing.T) {
	items := []domain.LineItem{part("a", "10", 0), part("b", "5", 2)}
	assertAmount(t, "10", Subtotal(items))
}

func TestMoneyHelpers(t *testing.T) {
	assert.Equal(t, int64(21600), Cents(dec("216")))
	assert.Equal(t, int64(1000), Cents(dec("9.995")))
	assert.Equal(t, "0.12", Format(dec("0.125")))
	rounded := RoundSnapshot(domain.PricingSnapshot{TaxAmount: dec("1.23456"), PromoCode: "X"})
	assertAmount(t, "1.23", rounded.TaxAmount)
	require.Equal(t, "X", rounded.PromoCode)
}
