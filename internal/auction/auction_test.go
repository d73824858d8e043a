package auction

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsmarket/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newSession(t *testing.T, d time.Duration) *Session {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s, err := NewSession(domain.QuoteRequest{ID: "q1", Description: "front brake pads", Duration: d}, clock.now)
	require.NoError(t, err)
	return s
}

func bid(shop, cost string) domain.Bid {
	return domain.Bid{ShopID: shop, LaborCost: decimal.RequireFromString(cost)}
}

func costs(bids []domain.Bid) []string {
	out := make([]string, len(bids))
	for i, b := range bids {
		out[i] = b.LaborCost.String()
	}
	return out
}

func TestRank_LowestCostFirst(t *testing.T) {
	s := newSession(t, time.Hour)
	for _, c := range []string{"120", "85", "140"} {
		_, err := s.SubmitBid(bid("shop-"+c, c))
		require.NoError(t, err)
	}
	view := s.View()
	assert.Equal(t, []string{"85", "120", "140"}, costs(view.Bids))
	assert.Equal(t, view.Bids[0].ID, view.LowestBidID)

	lowest, ok := Lowest(s.bids)
	require.True(t, ok)
	assert.Equal(t, "85", lowest.LaborCost.String())
}

func TestRank_TiesBrokenBySubmissionTime(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bids := []domain.Bid{
		{ID: "late", LaborCost: decimal.NewFromInt(90), SubmittedAt: base.Add(2 * time.Minute)},
		{ID: "early", LaborCost: decimal.NewFromInt(90), SubmittedAt: base},
		{ID: "cheap", LaborCost: decimal.RequireFromString("89.99"), SubmittedAt: base.Add(time.Hour)},
		{ID: "same-time", LaborCost: decimal.NewFromInt(90), SubmittedAt: base},
	}
	ranked := Rank(bids)
	ids := []string{ranked[0].ID, ranked[1].ID, ranked[2].ID, ranked[3].ID}
	assert.Equal(t, []string{"cheap", "early", "same-time", "late"}, ids)
	assert.Equal(t, "late", bids[0].ID, "input must not be reordered")

	_, ok := Lowest(nil)
	assert.False(t, ok)
}

func TestSession_RankingRecomputedOnIngest(t *testing.T) {
	s := newSession(t, time.Hour)
	_, err := s.SubmitBid(bid("a", "100"))
	require.NoError(t, err)
	assert.Equal(t, []string{"100"}, costs(s.Bids()))

	cheaper, err := s.SubmitBid(bid("b", "75"))
	require.NoError(t, err)
	assert.Equal(t, cheaper.ID, s.View().LowestBidID)
}

func TestSession_SubmitValidation(t *testing.T) {
	s := newSession(t, time.Hour)
	_, err := s.SubmitBid(bid("a", "0"))
	assert.ErrorIs(t, err, domain.ErrInvalidBid)
	_, err = s.SubmitBid(bid("", "10"))
	assert.ErrorIs(t, err, domain.ErrInvalidBid)

	first, err := s.SubmitBid(domain.Bid{ID: "b1", ShopID: "a", LaborCost: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, "q1", first.QuoteID)
	assert.False(t, first.SubmittedAt.IsZero())
	_, err = s.SubmitBid(domain.Bid{ID: "b1", ShopID: "b", LaborCost: decimal.NewFromInt(12)})
	assert.ErrorIs(t, err, domain.ErrInvalidBid)
}

func TestSession_AcceptIsTerminal(t *testing.T) {
	s := newSession(t, time.Hour)
	b1, err := s.SubmitBid(bid("a", "120"))
	require.NoError(t, err)
	b2, err := s.SubmitBid(bid("b", "85"))
	require.NoError(t, err)

	accepted, err := s.AcceptBid(b1.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)
	assert.Equal(t, domain.AuctionClosed, s.Status())

	_, err = s.AcceptBid(b2.ID)
	assert.ErrorIs(t, err, domain.ErrAuctionAlreadyResolved)
	_, err = s.AcceptBid(b1.ID)
	assert.ErrorIs(t, err, domain.ErrAuctionAlreadyResolved)

	_, err = s.SubmitBid(bid("c", "50"))
	assert.ErrorIs(t, err, domain.ErrAuctionExpired)

	view := s.View()
	assert.Equal(t, domain.CloseReasonAccepted, view.CloseReason)
	assert.Equal(t, b1.ID, view.AcceptedBidID)
	require.Len(t, view.Bids, 2)
	acceptedCount := 0
	for _, b := range view.Bids {
		if b.Accepted {
			acceptedCount++
		}
	}
	assert.Equal(t, 1, acceptedCount)
}

func TestSession_AcceptUnknownBid(t *testing.T) {
	s := newSession(t, time.Hour)
	_, err := s.AcceptBid("nope")
	assert.ErrorIs(t, err, domain.ErrBidNotFound)
	assert.Equal(t, domain.AuctionOpen, s.Status())
}

func TestSession_TimerExpires(t *testing.T) {
	s := newSession(t, 3*time.Second)
	assert.False(t, s.Tick())
	assert.False(t, s.Tick())
	assert.Equal(t, time.Second, s.TimeRemaining())
	assert.True(t, s.Tick())
	assert.Equal(t, domain.AuctionClosed, s.Status())
	assert.Equal(t, time.Duration(0), s.TimeRemaining())

	assert.False(t, s.Tick(), "no double close")
	assert.Equal(t, time.Duration(0), s.TimeRemaining(), "no negative time")

	_, err := s.SubmitBid(bid("late", "10"))
	assert.ErrorIs(t, err, domain.ErrAuctionExpired)
	_, err = s.AcceptBid("anything")
	assert.ErrorIs(t, err, domain.ErrAuctionAlreadyResolved)
	assert.Equal(t, domain.CloseReasonExpired, s.View().CloseReason)
}

func TestSession_TickAfterAcceptIsIgnored(t *testing.T) {
	s := newSession(t, 2*time.Second)
	b, err := s.SubmitBid(bid("a", "10"))
	require.NoError(t, err)
	_, err = s.AcceptBid(b.ID)
	require.NoError(t, err)

	assert.False(t, s.Tick())
	assert.Equal(t, 2*time.Second, s.TimeRemaining())
	assert.Equal(t, domain.CloseReasonAccepted, s.View().CloseReason)
}

func TestNewSession_RejectsNonPositiveDuration(t *testing.T) {
	_, err := NewSession(domain.QuoteRequest{ID: "q"}, nil)
	assert.Error(t, err)
}

func startRunner(t *testing.T, d time.Duration, opts ...Option) (*Runner, context.CancelFunc) {
	t.Helper()
	r := NewRunner(newSession(t, d), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return r, cancel
}

func TestRunner_TicksCloseAuction(t *testing.T) {
	ticks := make(chan time.Time)
	closed := make(chan domain.AuctionView, 1)
	r, _ := startRunner(t, 2*time.Second, WithTicks(ticks), WithCloseHook(func(v domain.AuctionView) { closed <- v }))
	ctx := context.Background()

	_, err := r.SubmitBid(ctx, bid("a", "99"))
	require.NoError(t, err)

	ticks <- time.Now()
	ticks <- time.Now()

	select {
	case v := <-closed:
		assert.Equal(t, domain.CloseReasonExpired, v.CloseReason)
	case <-time.After(2 * time.Second):
		t.Fatal("close hook not called")
	}

	view, err := r.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionClosed, view.Status)
	assert.Len(t, view.Bids, 1)

	_, err = r.SubmitBid(ctx, bid("b", "50"))
	assert.ErrorIs(t, err, domain.ErrAuctionExpired)
}

func TestRunner_ConcurrentAcceptFirstWins(t *testing.T) {
	closes := int32(0)
	r, _ := startRunner(t, time.Hour, WithTicks(make(chan time.Time)), WithCloseHook(func(domain.AuctionView) { atomic.AddInt32(&closes, 1) }))
	ctx := context.Background()

	var ids []string
	for _, c := range []string{"120", "85", "140"} {
		b, err := r.SubmitBid(ctx, bid("shop-"+c, c))
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	var (
		wg       sync.WaitGroup
		wins     int32
		resolved int32
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := r.AcceptBid(ctx, id)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case assert.ErrorIs(t, err, domain.ErrAuctionAlreadyResolved):
				atomic.AddInt32(&resolved, 1)
			}
		}(ids[i%len(ids)])
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(29), resolved)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestRunner_StoppedRunnerRejects(t *testing.T) {
	r, cancel := startRunner(t, time.Hour, WithTicks(make(chan time.Time)))
	cancel()
	<-r.Done()
	_, err := r.View(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSimulator_SubmitsOneBidPerShop(t *testing.T) {
	r, _ := startRunner(t, time.Hour, WithTicks(make(chan time.Time)))
	sim := &Simulator{Shops: DefaultShops, Rand: rand.New(rand.NewSource(7))}
	sim.Run(context.Background(), r)

	view, err := r.View(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Bids, len(DefaultShops))
	for _, b := range view.Bids {
		assert.True(t, b.LaborCost.GreaterThanOrEqual(decimal.NewFromInt(60)))
		assert.True(t, b.LaborCost.LessThan(decimal.NewFromInt(240)))
	}
	assert.Equal(t, costs(Rank(view.Bids)), costs(view.Bids))
}

func TestSimulator_StopsWhenAuctionCloses(t *testing.T) {
	r, _ := startRunner(t, time.Hour, WithTicks(make(chan time.Time)))
	ctx := context.Background()
	b, err := r.SubmitBid(ctx, bid("buyer-pick", "70"))
	require.NoError(t, err)
	_, err = r.AcceptBid(ctx, b.ID)
	require.NoError(t, err)

	sim := &Simulator{Shops: DefaultShops, Rand: rand.New(rand.NewSource(1))}
	sim.Run(ctx, r)

	view, err := r.View(ctx)
	require.NoError(t, err)
	assert.Len(t, view.Bids, 1)
}
