package auction

import (
	"context"
	"errors"
	"time"

	"partsmarket/internal/domain"
)

// ErrStopped is returned when a Runner's loop has exited.
var ErrStopped = errors.New("auction runner stopped")

type eventKind int

const (
	eventSubmit eventKind = iota
	eventAccept
	eventView
)

type event struct {
	kind  eventKind
	bid   domain.Bid
	bidID string
	reply chan result
}

type result struct {
	bid  domain.Bid
	view domain.AuctionView
	err  error
}

// Runner owns a Session and applies bid arrivals, acceptances, reads and
// countdown ticks one at a time from a single event loop.
type Runner struct {
	session *Session
	events  chan event
	done    chan struct{}
	ticks   <-chan time.Time
	onClose func(domain.AuctionView)
}

// Option configures a Runner.
type Option func(*Runner)

// WithTicks replaces the wall-clock ticker with ticks.
func WithTicks(ticks <-chan time.Time) Option {
	return func(r *Runner) {
		r.ticks = ticks
	}
}

// WithCloseHook registers fn to run on the loop goroutine when the auction
// closes, whichever way it closes.
func WithCloseHook(fn func(domain.AuctionView)) Option {
	return func(r *Runner) {
		r.onClose = fn
	}
}

// NewRunner wraps s. Call Run to start processing.
func NewRunner(s *Session, opts ...Option) *Runner {
	r := &Runner{
		session: s,
		events:  make(chan event),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes events until ctx is cancelled. Reads keep being served
// after the auction closes.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	ticks := r.ticks
	if ticks == nil {
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		if r.session.Status() != domain.AuctionOpen {
			ticks = nil
		}
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if r.session.Tick() {
				r.closed()
			}
		case ev := <-r.events:
			r.apply(ev)
		}
	}
}

func (r *Runner) apply(ev event) {
	wasOpen := r.session.Status() == domain.AuctionOpen
	var res result
	switch ev.kind {
	case eventSubmit:
		res.bid, res.err = r.session.SubmitBid(ev.bid)
	case eventAccept:
		res.bid, res.err = r.session.AcceptBid(ev.bidID)
	case eventView:
		res.view = r.session.View()
	}
	ev.reply <- res
	if wasOpen && r.session.Status() != domain.AuctionOpen {
		r.closed()
	}
}

func (r *Runner) closed() {
	if r.onClose != nil {
		r.onClose(r.session.View())
	}
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// SubmitBid delivers a bid to the auction.
func (r *Runner) SubmitBid(ctx context.Context, b domain.Bid) (domain.Bid, error) {
	res, err := r.send(ctx, event{kind: eventSubmit, bid: b})
	if err != nil {
		return domain.Bid{}, err
	}
	return res.bid, res.err
}

// AcceptBid asks the auction to accept bidID.
func (r *Runner) AcceptBid(ctx context.Context, bidID string) (domain.Bid, error) {
	res, err := r.send(ctx, event{kind: eventAccept, bidID: bidID})
	if err != nil {
		return domain.Bid{}, err
	}
	return res.bid, res.err
}

// View returns a consistent read of the auction.
func (r *Runner) View(ctx context.Context) (domain.AuctionView, error) {
	res, err := r.send(ctx, event{kind: eventView})
	if err != nil {
		return domain.AuctionView{}, err
	}
	return res.view, nil
}

func (r *Runner) send(ctx context.Context, ev event) (result, error) {
	ev.reply = make(chan result, 1)
	select {
	case r.events <- ev:
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-r.done:
		return result{}, ErrStopped
	}
	select {
	case res := <-ev.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}
