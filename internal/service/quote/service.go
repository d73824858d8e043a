// Package quote runs labor-quote auctions for shopping sessions.
package quote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"partsmarket/internal/auction"
	"partsmarket/internal/domain"
)

// ErrInvalidQuote reports a quote request without a description.
var ErrInvalidQuote = errors.New("invalid quote request")

// DefaultRetention is how long a closed quote stays readable before Sweep
// evicts it.
const DefaultRetention = time.Hour

type entry struct {
	quote    domain.QuoteRequest
	runner   *auction.Runner
	stop     context.CancelFunc
	closedAt time.Time
}

type Service struct {
	duration  time.Duration
	retention time.Duration
	simulator func() *auction.Simulator
	runnerOpt []auction.Option
	logger    *zap.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	quotes  map[string]*entry
	stopped bool
}

type Option func(*Service)

// WithSimulator starts a bid simulator for every new quote.
func WithSimulator(newSim func() *auction.Simulator) Option {
	return func(s *Service) {
		s.simulator = newSim
	}
}

// WithRunnerOptions passes opts to every auction runner.
func WithRunnerOptions(opts ...auction.Option) Option {
	return func(s *Service) {
		s.runnerOpt = append(s.runnerOpt, opts...)
	}
}

// WithRetention sets how long closed quotes are kept before Sweep evicts
// them. Non-positive values keep the default.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

func New(duration time.Duration, logger *zap.Logger, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		duration:  duration,
		retention: DefaultRetention,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		quotes:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Description string `json:"description"`
	Vehicle     string `json:"vehicle"`
}

// Create opens an auction owned by sessionID and returns its first view.
func (s *Service) Create(ctx context.Context, sessionID string, in CreateInput) (domain.AuctionView, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return domain.AuctionView{}, fmt.Errorf("%w: description required", ErrInvalidQuote)
	}
	q := domain.QuoteRequest{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Description: desc,
		Vehicle:     strings.TrimSpace(in.Vehicle),
		Duration:    s.duration,
		CreatedAt:   s.now().UTC(),
	}
	session, err := auction.NewSession(q, s.now)
	if err != nil {
		return domain.AuctionView{}, err
	}

	opts := append([]auction.Option{auction.WithCloseHook(s.closed)}, s.runnerOpt...)
	runner := auction.NewRunner(session, opts...)

	var sim *auction.Simulator
	if s.simulator != nil {
		sim = s.simulator()
	}

	// registering and wg.Add share the lock with Shutdown so Wait never
	// races a late Add
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return domain.AuctionView{}, auction.ErrStopped
	}
	runCtx, stop := context.WithCancel(s.ctx)
	s.quotes[q.ID] = &entry{quote: q, runner: runner, stop: stop}
	s.wg.Add(1)
	if sim != nil {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		runner.Run(runCtx)
	}()
	if sim != nil {
		go func() {
			defer s.wg.Done()
			sim.Run(runCtx, runner)
		}()
	}

	s.logger.Info("quote opened",
		zap.String("quote_id", q.ID),
		zap.String("session_id", sessionID),
		zap.Duration("duration", q.Duration))

	return runner.View(ctx)
}

// Get returns the current auction view. Quotes of other sessions are
// reported as not found.
func (s *Service) Get(ctx context.Context, sessionID, quoteID string) (domain.AuctionView, error) {
	e, err := s.owned(sessionID, quoteID)
	if err != nil {
		return domain.AuctionView{}, err
	}
	return e.runner.View(ctx)
}

// List returns the session's quotes, newest first.
func (s *Service) List(ctx context.Context, sessionID string) ([]domain.AuctionView, error) {
	s.mu.RLock()
	var mine []*entry
	for _, e := range s.quotes {
		if e.quote.SessionID == sessionID {
			mine = append(mine, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(mine, func(i, j int) bool {
		return mine[i].quote.CreatedAt.After(mine[j].quote.CreatedAt)
	})

	views := make([]domain.AuctionView, 0, len(mine))
	for _, e := range mine {
		v, err := e.runner.View(ctx)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// SubmitBid delivers a shop's bid to the quote's auction.
func (s *Service) SubmitBid(ctx context.Context, quoteID string, bid domain.Bid) (domain.Bid, error) {
	e, err := s.lookup(quoteID)
	if err != nil {
		return domain.Bid{}, err
	}
	return e.runner.SubmitBid(ctx, bid)
}

// Accept resolves the auction in favour of bidID. Only the owning session
// may accept.
func (s *Service) Accept(ctx context.Context, sessionID, quoteID, bidID string) (domain.AuctionView, error) {
	e, err := s.owned(sessionID, quoteID)
	if err != nil {
		return domain.AuctionView{}, err
	}
	if _, err := e.runner.AcceptBid(ctx, bidID); err != nil {
		return domain.AuctionView{}, err
	}
	return e.runner.View(ctx)
}

// Sweep evicts quotes that closed more than the retention period ago and
// stops their runners. It returns the number of quotes evicted.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.retention)
	return s.evict(func(e *entry) bool {
		return !e.closedAt.IsZero() && !e.closedAt.After(cutoff)
	})
}

// DropSessions evicts every quote owned by the given sessions, open or not.
func (s *Service) DropSessions(sessionIDs []string) int {
	if len(sessionIDs) == 0 {
		return 0
	}
	gone := make(map[string]struct{}, len(sessionIDs))
	for _, id := range sessionIDs {
		gone[id] = struct{}{}
	}
	return s.evict(func(e *entry) bool {
		_, ok := gone[e.quote.SessionID]
		return ok
	})
}

func (s *Service) evict(match func(*entry) bool) int {
	var victims []*entry
	s.mu.Lock()
	for id, e := range s.quotes {
		if match(e) {
			victims = append(victims, e)
			delete(s.quotes, id)
		}
	}
	s.mu.Unlock()

	for _, e := range victims {
		e.stop()
		s.logger.Debug("quote evicted",
			zap.String("quote_id", e.quote.ID),
			zap.String("session_id", e.quote.SessionID))
	}
	return len(victims)
}

// Shutdown stops every auction loop and simulator and waits for them.
// Create fails with auction.ErrStopped afterwards.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) lookup(quoteID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.quotes[quoteID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (s *Service) owned(sessionID, quoteID string) (*entry, error) {
	e, err := s.lookup(quoteID)
	if err != nil {
		return nil, err
	}
	if e.quote.SessionID != sessionID {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (s *Service) closed(view domain.AuctionView) {
	s.mu.Lock()
	if e, ok := s.quotes[view.Quote.ID]; ok {
		e.closedAt = s.now()
	}
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("quote_id", view.Quote.ID),
		zap.String("reason", string(view.CloseReason)),
		zap.Int("bids", len(view.Bids)),
	}
	if view.AcceptedBidID != "" {
		fields = append(fields, zap.String("accepted_bid_id", view.AcceptedBidID))
	}
	s.logger.Info("quote closed", fields...)
}
