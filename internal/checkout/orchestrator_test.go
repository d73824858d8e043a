package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"partsmarket/internal/cart"
	"partsmarket/internal/config"
	"partsmarket/internal/domain"
	"partsmarket/internal/pricing"
)

type stubOrders struct {
	mu       sync.Mutex
	payloads []domain.OrderPayload
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (s *stubOrders) CreateOrder(ctx context.Context, payload domain.OrderPayload) (*domain.OrderConfirmation, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.OrderConfirmation{OrderNumber: "ORD-00000042", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}, nil
}

func (s *stubOrders) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

type stubLocker struct {
	acquired bool
	err      error
	released int
}

func (l *stubLocker) Acquire(context.Context, string) (func(context.Context), bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func(context.Context) { l.released++ }, true, nil
}

var shipTo = domain.Address{Name: "Sam Driver", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}

func newOrchestrator(orders OrderService, opts ...Option) *Orchestrator {
	return New(orders, pricing.NewEngine(config.DefaultPricing()), zap.NewNop(), opts...)
}

func filledCart(t *testing.T) *cart.Store {
	t.Helper()
	c := cart.NewStore("session-1")
	require.NoError(t, c.Add(domain.LineItem{ID: "A", Kind: domain.KindPart, Name: "Brake pads", UnitPrice: decimal.NewFromInt(50)}, 2))
	require.NoError(t, c.Add(domain.LineItem{ID: "B", Kind: domain.KindLabor, Name: "Install", UnitPrice: decimal.NewFromInt(100)}, 1))
	return c
}

func TestSubmit_EmptyCartMakesNoRemoteCall(t *testing.T) {
	orders := &stubOrders{}
	_, err := newOrchestrator(orders).Submit(context.Background(), cart.NewStore("s"), Input{ShippingAddress: shipTo})
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Zero(t, orders.calls())
}

func TestSubmit_SuccessClearsCart(t *testing.T) {
	orders := &stubOrders{}
	c := filledCart(t)

	order, err := newOrchestrator(orders).Submit(context.Background(), c, Input{ShippingAddress: shipTo, Notes: "  side door  "})
	require.NoError(t, err)

	assert.Equal(t, "ORD-00000042", order.Number)
	assert.Equal(t, "216.00", pricing.Format(order.Pricing.GrandTotal))
	assert.Len(t, order.Items, 2)
	assert.Zero(t, c.Len())

	require.Equal(t, 1, orders.calls())
	payload := orders.payloads[0]
	assert.NotEmpty(t, payload.IdempotencyKey)
	assert.Equal(t, "session-1", payload.SessionID)
	assert.Equal(t, "USD", payload.Currency)
	assert.Equal(t, domain.PaymentCard, payload.PaymentMethod)
	assert.Equal(t, shipTo, payload.BillingAddress)
	assert.Equal(t, "side door", payload.Notes)
}

func TestSubmit_FailureLeavesCartUntouched(t *testing.T) {
	remoteErr := &domain.OrderServiceError{Kind: domain.OrderServiceRemote, Status: 503, Message: "down"}
	orders := &stubOrders{err: remoteErr}
	c := filledCart(t)
	promo, err := c.ApplyPromo(pricing.NewResolver(config.DefaultPricing().PromoTable), "SAVE10")
	require.NoError(t, err)
	before := c.Items()

	_, err = newOrchestrator(orders).Submit(context.Background(), c, Input{ShippingAddress: shipTo})
	require.Error(t, err)
	assert.Same(t, remoteErr, err)

	assert.Equal(t, before, c.Items())
	require.NotNil(t, c.Promo())
	assert.Equal(t, promo.Code, c.Promo().Code)
}

func TestSubmit_SecondSubmitWhileInFlight(t *testing.T) {
	orders := &stubOrders{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	o := newOrchestrator(orders)
	c := filledCart(t)

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), c, Input{ShippingAddress: shipTo})
		done <- err
	}()
	<-orders.entered

	_, err := o.Submit(context.Background(), c, Input{ShippingAddress: shipTo})
	assert.ErrorIs(t, err, domain.ErrCheckoutInProgress)

	close(orders.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, orders.calls())
}

func TestSubmit_PayloadIsIsolatedFromLaterCartEdits(t *testing.T) {
	orders := &stubOrders{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	o := newOrchestrator(orders)
	c := filledCart(t)

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), c, Input{ShippingAddress: shipTo})
		done <- err
	}()
	<-orders.entered

	require.NoError(t, c.UpdateQuantity("A", 9))
	close(orders.block)
	require.NoError(t, <-done)

	payload := orders.payloads[0]
	assert.Equal(t, 2, payload.Items[0].Quantity)
	assert.Equal(t, "216.00", pricing.Format(payload.Pricing.GrandTotal))
}

func TestSubmit_KeepsRowsAddedWhileInFlight(t *testing.T) {
	orders := &stubOrders{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	o := newOrchestrator(orders)
	c := filledCart(t)

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), c, Input{ShippingAddress: shipTo})
		done <- err
	}()
	<-orders.entered

	require.NoError(t, c.Add(domain.LineItem{ID: "C", Kind: domain.KindPart, Name: "Wiper", UnitPrice: decimal.NewFromInt(12)}, 1))
	require.NoError(t, c.UpdateQuantity("A", 3))
	close(orders.block)
	require.NoError(t, <-done)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].ID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "C", items[1].ID)
}

func TestSubmit_ValidatesInput(t *testing.T) {
	orders := &stubOrders{}
	o := newOrchestrator(orders)

	_, err := o.Submit(context.Background(), filledCart(t), Input{})
	assert.ErrorIs(t, err, domain.ErrInvalidCheckout)

	_, err = o.Submit(context.Background(), filledCart(t), Input{ShippingAddress: shipTo, PaymentMethod: "barter"})
	assert.ErrorIs(t, err, domain.ErrInvalidCheckout)
	assert.Zero(t, orders.calls())

	laborOnly := cart.NewStore("s2")
	require.NoError(t, laborOnly.Add(domain.LineItem{ID: "L", Kind: domain.KindLabor, Name: "Diagnostics", UnitPrice: decimal.NewFromInt(80)}, 1))
	_, err = o.Submit(context.Background(), laborOnly, Input{PaymentMethod: domain.PaymentPayAtShop})
	require.NoError(t, err)
}

func TestSubmit_KeepsCallerIdempotencyKey(t *testing.T) {
	orders := &stubOrders{}
	_, err := newOrchestrator(orders).Submit(context.Background(), filledCart(t), Input{ShippingAddress: shipTo, IdempotencyKey: "retry-7"})
	require.NoError(t, err)
	assert.Equal(t, "retry-7", orders.payloads[0].IdempotencyKey)
}

func TestSubmit_Locker(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		orders := &stubOrders{}
		c := filledCart(t)
		_, err := newOrchestrator(orders, WithLocker(&stubLocker{})).Submit(context.Background(), c, Input{ShippingAddress: shipTo})
		assert.ErrorIs(t, err, domain.ErrCheckoutInProgress)
		assert.Zero(t, orders.calls())
		assert.Equal(t, 2, c.Len())
	})
	t.Run("lock error", func(t *testing.T) {
		boom := errors.New("redis unavailable")
		_, err := newOrchestrator(&stubOrders{}, WithLocker(&stubLocker{err: boom})).Submit(context.Background(), filledCart(t), Input{ShippingAddress: shipTo})
		assert.ErrorIs(t, err, boom)
	})
	t.Run("released after success", func(t *testing.T) {
		l := &stubLocker{acquired: true}
		_, err := newOrchestrator(&stubOrders{}, WithLocker(l)).Submit(context.Background(), filledCart(t), Input{ShippingAddress: shipTo})
		require.NoError(t, err)
		assert.Equal(t, 1, l.released)
	})
}
