package order

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"partsmarket/internal/domain"
)

// ErrKeyReused is returned when an idempotency key is replayed with an order
// that differs from the one stored under it.
var ErrKeyReused = &domain.OrderServiceError{
	Kind:    domain.OrderServiceValidation,
	Message: "idempotency key reused with a different order",
}

// fingerprint identifies what an order commits to: who placed it, what it
// holds and what it costs. Addresses and notes are left out so a retry with
// corrected delivery details still replays.
func fingerprint(p domain.OrderPayload) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1f%s\x1e",
		p.SessionID, p.Currency, p.PaymentMethod, p.Pricing.PromoCode, p.Pricing.GrandTotal.StringFixed(2))
	for _, item := range p.Items {
		writeLine(h, item)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeLine(w io.Writer, item domain.LineItem) {
	fmt.Fprintf(w, "%s\x1f%s\x1f%d\x1f%s\x1e", item.ID, item.Kind, item.Quantity, item.UnitPrice.String())
}
