// Package seed builds demo shop bids for exercising the bid feed by hand.
package seed

import (
	"math/rand"
	"strings"

	"partsmarket/internal/auction"
	"partsmarket/internal/messaging"
)

// Bids drafts one bid per roster shop against quoteID. A nil roster uses
// the default shops.
func Bids(quoteID string, shops []auction.SimulatedShop, rng *rand.Rand) []messaging.BidMessage {
	if len(shops) == 0 {
		shops = auction.DefaultShops
	}
	sim := &auction.Simulator{Rand: rng}

	out := make([]messaging.BidMessage, 0, len(shops))
	for _, shop := range shops {
		b := sim.Draft(shop)
		out = append(out, messaging.BidMessage{
			QuoteID:        strings.TrimSpace(quoteID),
			ShopID:         b.ShopID,
			ShopName:       b.ShopName,
			LaborCost:      b.LaborCost,
			EstimatedTime:  b.EstimatedTime,
			Warranty:       b.Warranty,
			NextAvailable:  b.NextAvailable,
			Certifications: b.Certifications,
		})
	}
	return out
}
