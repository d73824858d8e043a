package auction

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"partsmarket/internal/domain"
)

// SimulatedShop is a canned bidder used by the demo bid feed.
type SimulatedShop struct {
	ID             string
	Name           string
	Warranty       string
	Certifications []string
}

// DefaultShops is the roster the simulator draws from.
var DefaultShops = []SimulatedShop{
	{ID: "shop-midtown", Name: "Midtown Auto Care", Warranty: "12 months / 12,000 miles", Certifications: []string{"ASE Certified"}},
	{ID: "shop-precision", Name: "Precision Brake & Tire", Warranty: "24 months / 24,000 miles", Certifications: []string{"ASE Certified", "AAA Approved"}},
	{ID: "shop-eastside", Name: "Eastside Mechanics", Warranty: "6 months", Certifications: nil},
	{ID: "shop-torque", Name: "Torque Masters", Warranty: "36 months / 36,000 miles", Certifications: []string{"ASE Master Technician", "OEM Trained"}},
}

// Simulator stands in for a live shop feed during demos: it submits a few
// randomised bids to a Runner at random intervals.
type Simulator struct {
	Shops    []SimulatedShop
	MinDelay time.Duration
	MaxDelay time.Duration
	Rand     *rand.Rand
	Logger   *zap.Logger
}

// NewSimulator returns a simulator with the default roster and delays.
func NewSimulator(logger *zap.Logger) *Simulator {
	return &Simulator{
		Shops:    DefaultShops,
		MinDelay: 3 * time.Second,
		MaxDelay: 12 * time.Second,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:   logger,
	}
}

// Run submits one bid per shop, stopping early when ctx is cancelled or the
// auction stops accepting bids.
func (s *Simulator) Run(ctx context.Context, r *Runner) {
	for _, shop := range s.Shops {
		timer := time.NewTimer(s.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		bid, err := r.SubmitBid(ctx, s.Draft(shop))
		if err != nil {
			if errors.Is(err, domain.ErrAuctionExpired) || errors.Is(err, ErrStopped) || ctx.Err() != nil {
				return
			}
			s.logger().Warn("simulated bid rejected", zap.String("shop", shop.ID), zap.Error(err))
			continue
		}
		s.logger().Debug("simulated bid submitted",
			zap.String("quote_id", bid.QuoteID),
			zap.String("shop", shop.ID),
			zap.String("labor_cost", bid.LaborCost.StringFixed(2)))
	}
}

func (s *Simulator) delay() time.Duration {
	span := s.MaxDelay - s.MinDelay
	if span <= 0 {
		return s.MinDelay
	}
	return s.MinDelay + time.Duration(s.Rand.Int63n(int64(span)))
}

// Draft builds a randomised bid from shop without submitting it.
func (s *Simulator) Draft(shop SimulatedShop) domain.Bid {
	// whole dollars between 60 and 239, half of them ending in .50
	cost := decimal.NewFromInt(60 + s.Rand.Int63n(180))
	if s.Rand.Intn(2) == 1 {
		cost = cost.Add(decimal.RequireFromString("0.50"))
	}
	hours := 1 + s.Rand.Intn(4)
	next := time.Now().UTC().Add(time.Duration(24*(1+s.Rand.Intn(5))) * time.Hour).Truncate(time.Hour)
	return domain.Bid{
		ShopID:         shop.ID,
		ShopName:       shop.Name,
		LaborCost:      cost,
		EstimatedTime:  fmt.Sprintf("%d hours", hours),
		Warranty:       shop.Warranty,
		NextAvailable:  &next,
		Certifications: shop.Certifications,
	}
}

func (s *Simulator) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
