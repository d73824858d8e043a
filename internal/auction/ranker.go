package auction

import (
	"sort"

	"partsmarket/internal/domain"
)

// Rank returns a copy of bids ordered by ascending labor cost, then by
// submission time. Bids equal on both keep their input order, which is the
// order they were ingested in.
func Rank(bids []domain.Bid) []domain.Bid {
	out := make([]domain.Bid, len(bids))
	for i, b := range bids {
		out[i] = b.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].LaborCost.Cmp(out[j].LaborCost); c != 0 {
			return c < 0
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// Lowest returns the best-ranked bid, if any.
func Lowest(bids []domain.Bid) (domain.Bid, bool) {
	ranked := Rank(bids)
	if len(ranked) == 0 {
		return domain.Bid{}, false
	}
	return ranked[0], true
}
