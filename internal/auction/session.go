// Package auction implements time-boxed quote requests: shops bid on labor,
// the buyer accepts one bid or the countdown runs out.
package auction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"partsmarket/internal/domain"
)

// TickInterval is how much time one countdown tick removes.
const TickInterval = time.Second

// Session is the state machine of one quote request. It is not safe for
// concurrent use; a Runner owns it and feeds it one event at a time.
type Session struct {
	quote     domain.QuoteRequest
	remaining time.Duration
	status    domain.AuctionStatus
	reason    domain.CloseReason
	bids      []domain.Bid
	accepted  string
	now       func() time.Time
}

// NewSession opens an auction for q lasting q.Duration.
func NewSession(q domain.QuoteRequest, now func() time.Time) (*Session, error) {
	if q.Duration <= 0 {
		return nil, fmt.Errorf("auction duration must be positive, got %s", q.Duration)
	}
	if now == nil {
		now = time.Now
	}
	return &Session{
		quote:     q,
		remaining: q.Duration,
		status:    domain.AuctionOpen,
		now:       now,
	}, nil
}

// SubmitBid records a bid while the auction is open. The bid gets an id and
// submission time if the caller left them empty.
func (s *Session) SubmitBid(b domain.Bid) (domain.Bid, error) {
	if s.status != domain.AuctionOpen {
		return domain.Bid{}, domain.ErrAuctionExpired
	}
	if strings.TrimSpace(b.ShopID) == "" {
		return domain.Bid{}, fmt.Errorf("%w: shop required", domain.ErrInvalidBid)
	}
	if !b.LaborCost.IsPositive() {
		return domain.Bid{}, fmt.Errorf("%w: labor cost must be positive", domain.ErrInvalidBid)
	}

	bid := b.Clone()
	if bid.ID == "" {
		bid.ID = uuid.NewString()
	} else if s.indexOf(bid.ID) >= 0 {
		return domain.Bid{}, fmt.Errorf("%w: duplicate bid id %s", domain.ErrInvalidBid, bid.ID)
	}
	bid.QuoteID = s.quote.ID
	if bid.SubmittedAt.IsZero() {
		bid.SubmittedAt = s.now().UTC()
	}
	bid.Accepted = false
	s.bids = append(s.bids, bid)
	return bid.Clone(), nil
}

// AcceptBid accepts bidID and closes the auction. Only the first acceptance
// made while the auction is open succeeds.
func (s *Session) AcceptBid(bidID string) (domain.Bid, error) {
	if s.status != domain.AuctionOpen {
		return domain.Bid{}, domain.ErrAuctionAlreadyResolved
	}
	idx := s.indexOf(bidID)
	if idx < 0 {
		return domain.Bid{}, domain.ErrBidNotFound
	}
	s.bids[idx].Accepted = true
	s.accepted = bidID
	s.close(domain.CloseReasonAccepted)
	return s.bids[idx].Clone(), nil
}

// Tick advances the countdown by one TickInterval. It reports whether this
// tick closed the auction. Ticks after close are ignored.
func (s *Session) Tick() bool {
	if s.status != domain.AuctionOpen {
		return false
	}
	s.remaining -= TickInterval
	if s.remaining > 0 {
		return false
	}
	s.remaining = 0
	s.close(domain.CloseReasonExpired)
	return true
}

// Status returns the lifecycle state.
func (s *Session) Status() domain.AuctionStatus {
	return s.status
}

// TimeRemaining returns the countdown value; never negative.
func (s *Session) TimeRemaining() time.Duration {
	return s.remaining
}

// Bids returns the bids ranked for display.
func (s *Session) Bids() []domain.Bid {
	return Rank(s.bids)
}

// View returns a consistent read of the auction.
func (s *Session) View() domain.AuctionView {
	ranked := Rank(s.bids)
	v := domain.AuctionView{
		Quote:         s.quote,
		Status:        s.status,
		CloseReason:   s.reason,
		TimeRemaining: s.remaining,
		Bids:          ranked,
		AcceptedBidID: s.accepted,
	}
	if len(ranked) > 0 {
		v.LowestBidID = ranked[0].ID
	}
	return v
}

func (s *Session) close(reason domain.CloseReason) {
	s.status = domain.AuctionClosed
	s.reason = reason
}

func (s *Session) indexOf(bidID string) int {
	for i := range s.bids {
		if s.bids[i].ID == bidID {
			return i
		}
	}
	return -1
}
