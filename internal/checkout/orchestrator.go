// Package checkout turns a cart into an order through the Order Service.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"partsmarket/internal/domain"
	"partsmarket/internal/pricing"
)

// OrderService is the external collaborator that persists orders and
// assigns order numbers.
type OrderService interface {
	CreateOrder(ctx context.Context, payload domain.OrderPayload) (*domain.OrderConfirmation, error)
}

// Cart is the part of a cart store checkout needs.
type Cart interface {
	ID() string
	Contents() ([]domain.LineItem, *domain.PromoCode)
	RemoveOrdered(ordered []domain.LineItem)
}

// Locker guards a cart against concurrent submissions across processes.
// acquired is false when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), acquired bool, err error)
}

// Input carries the buyer-supplied checkout fields.
type Input struct {
	ShippingAddress domain.Address       `json:"shippingAddress"`
	BillingAddress  domain.Address       `json:"billingAddress"`
	Notes           string               `json:"notes"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod"`
	IdempotencyKey  string               `json:"idempotencyKey,omitempty"`
}

// Orchestrator validates a cart, hands an immutable payload to the Order
// Service and takes the ordered rows out of the cart once the order exists.
type Orchestrator struct {
	orders OrderService
	engine *pricing.Engine
	locker Locker
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLocker adds a cross-process submission lock.
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

// New builds an Orchestrator.
func New(orders OrderService, engine *pricing.Engine, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		orders:   orders,
		engine:   engine,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit places an order for the current contents of c. On any error the
// cart is left exactly as it was. Order Service errors are returned unchanged.
func (o *Orchestrator) Submit(ctx context.Context, c Cart, in Input) (*domain.Order, error) {
	items, promo := c.Contents()
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if err := normalizeInput(&in, items); err != nil {
		return nil, err
	}

	if !o.begin(c.ID()) {
		return nil, domain.ErrCheckoutInProgress
	}
	defer o.end(c.ID())

	if o.locker != nil {
		release, acquired, err := o.locker.Acquire(ctx, c.ID())
		if err != nil {
			return nil, fmt.Errorf("acquire checkout lock: %w", err)
		}
		if !acquired {
			return nil, domain.ErrCheckoutInProgress
		}
		defer release(context.WithoutCancel(ctx))
	}

	payload := o.buildPayload(c.ID(), items, promo, in)
	conf, err := o.orders.CreateOrder(ctx, payload)
	if err != nil {
		o.logger.Warn("create order failed",
			zap.String("cart_id", c.ID()),
			zap.String("idempotency_key", payload.IdempotencyKey),
			zap.Error(err))
		return nil, err
	}

	// only what the order holds leaves the cart; edits made while the
	// order was in flight stay for the next checkout
	c.RemoveOrdered(payload.Items)

	created := conf.CreatedAt
	if created.IsZero() {
		created = o.now().UTC()
	}
	o.logger.Info("order placed",
		zap.String("cart_id", c.ID()),
		zap.String("order_number", conf.OrderNumber),
		zap.String("grand_total", pricing.Format(payload.Pricing.GrandTotal)))

	return &domain.Order{
		Number:          conf.OrderNumber,
		Currency:        payload.Currency,
		Items:           domain.CloneLineItems(payload.Items),
		Pricing:         payload.Pricing,
		ShippingAddress: payload.ShippingAddress,
		BillingAddress:  payload.BillingAddress,
		Notes:           payload.Notes,
		PaymentMethod:   payload.PaymentMethod,
		CreatedAt:       created,
	}, nil
}

func (o *Orchestrator) buildPayload(cartID string, items []domain.LineItem, promo *domain.PromoCode, in Input) domain.OrderPayload {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	return domain.OrderPayload{
		IdempotencyKey:  key,
		SessionID:       cartID,
		Currency:        o.engine.Currency(),
		Items:           items,
		Pricing:         pricing.RoundSnapshot(o.engine.Compute(items, promo)),
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Notes:           in.Notes,
		PaymentMethod:   in.PaymentMethod,
	}
}

func (o *Orchestrator) begin(cartID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[cartID]; busy {
		return false
	}
	o.inFlight[cartID] = struct{}{}
	return true
}

func (o *Orchestrator) end(cartID string) {
	o.mu.Lock()
	delete(o.inFlight, cartID)
	o.mu.Unlock()
}

func normalizeInput(in *Input, items []domain.LineItem) error {
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentCard
	}
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", domain.ErrInvalidCheckout, in.PaymentMethod)
	}
	needsShipping := false
	for _, item := range items {
		if item.Kind == domain.KindPart {
			needsShipping = true
			break
		}
	}
	if needsShipping && in.ShippingAddress.IsZero() {
		return fmt.Errorf("%w: shipping address required", domain.ErrInvalidCheckout)
	}
	if in.BillingAddress.IsZero() {
		in.BillingAddress = in.ShippingAddress
	}
	in.Notes = strings.TrimSpace(in.Notes)
	return nil
}
