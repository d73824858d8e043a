package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	cartstore "partsmarket/internal/cart"
	"partsmarket/internal/checkout"
	"partsmarket/internal/domain"
	"partsmarket/internal/messaging"
	"partsmarket/internal/pricing"
)

// ErrInvalidAction reports a malformed or unsupported update action.
var ErrInvalidAction = errors.New("invalid cart action")

type Service struct {
	carts    cartRegistry
	engine   *pricing.Engine
	promos   cartstore.PromoResolver
	checkout orderSubmitter
	events   eventPublisher
	logger   *zap.Logger
}

type cartRegistry interface {
	Cart(sessionID string) *cartstore.Store
}

type orderSubmitter interface {
	Submit(ctx context.Context, c checkout.Cart, in checkout.Input) (*domain.Order, error)
}

type eventPublisher interface {
	PublishOrderPlaced(ctx context.Context, ev messaging.OrderPlacedEvent) error
}

func New(carts cartRegistry, engine *pricing.Engine, promos cartstore.PromoResolver, submitter orderSubmitter, logger *zap.Logger) *Service {
	return &Service{carts: carts, engine: engine, promos: promos, checkout: submitter, logger: logger}
}

// WithEvents enables order-placed events. A nil publisher disables them.
func (s *Service) WithEvents(p eventPublisher) *Service {
	s.events = p
	return s
}

// View is the cart as returned to clients. Pricing is unrounded; rendering
// rounds it.
type View struct {
	ID            string                 `json:"id"`
	Currency      string                 `json:"currency"`
	Items         []domain.LineItem      `json:"lineItems"`
	TotalQuantity int                    `json:"totalLineItemQuantity"`
	Promo         *domain.PromoCode      `json:"promoCode,omitempty"`
	Pricing       domain.PricingSnapshot `json:"pricing"`
	UpdatedAt     time.Time              `json:"lastModifiedAt"`
}

type UpdateInput struct {
	Actions []UpdateAction `json:"actions"`
}

type UpdateAction struct {
	Action           string           `json:"action"`
	LineItemID       string           `json:"lineItemId,omitempty"`
	Kind             string           `json:"kind,omitempty"`
	Name             string           `json:"name,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	OriginalPrice    *decimal.Decimal `json:"originalPrice,omitempty"`
	ShopID           string           `json:"shopId,omitempty"`
	EstimatedMinutes int              `json:"estimatedMinutes,omitempty"`
	ScheduledDate    *time.Time       `json:"scheduledDate,omitempty"`
	Quantity         int              `json:"quantity,omitempty"`
	Code             string           `json:"code,omitempty"`
}

func (s *Service) Get(ctx context.Context, sessionID string) View {
	return s.view(s.carts.Cart(sessionID))
}

// Update applies actions in order. Each action is atomic; when one fails the
// earlier ones stay applied and the error is returned.
func (s *Service) Update(ctx context.Context, sessionID string, in UpdateInput) (View, error) {
	if len(in.Actions) == 0 {
		return View{}, fmt.Errorf("%w: actions required", ErrInvalidAction)
	}
	store := s.carts.Cart(sessionID)

	for _, action := range in.Actions {
		if err := s.apply(store, action); err != nil {
			return View{}, err
		}
	}
	return s.view(store), nil
}

func (s *Service) apply(store *cartstore.Store, action UpdateAction) error {
	switch strings.ToLower(strings.TrimSpace(action.Action)) {
	case "addlineitem":
		item, err := lineItemFromAction(action)
		if err != nil {
			return err
		}
		if action.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidAction)
		}
		return store.Add(item, action.Quantity)
	case "changelineitemquantity":
		lineID := strings.TrimSpace(action.LineItemID)
		if lineID == "" {
			return fmt.Errorf("%w: lineItemId required", ErrInvalidAction)
		}
		return store.UpdateQuantity(lineID, action.Quantity)
	case "removelineitem":
		lineID := strings.TrimSpace(action.LineItemID)
		if lineID == "" {
			return fmt.Errorf("%w: lineItemId required", ErrInvalidAction)
		}
		store.Remove(lineID)
		return nil
	case "applypromocode":
		_, err := store.ApplyPromo(s.promos, strings.TrimSpace(action.Code))
		return err
	case "removepromocode":
		store.RemovePromo()
		return nil
	case "clear":
		store.Clear()
		return nil
	default:
		return fmt.Errorf("%w: unsupported action %q", ErrInvalidAction, action.Action)
	}
}

func (s *Service) RemoveLineItem(ctx context.Context, sessionID, lineItemID string) View {
	store := s.carts.Cart(sessionID)
	store.Remove(lineItemID)
	return s.view(store)
}

// Checkout submits the session's cart. On success the promo the order used
// is dropped along with the ordered rows and an order-placed event is
// published.
func (s *Service) Checkout(ctx context.Context, sessionID string, in checkout.Input) (*domain.Order, error) {
	store := s.carts.Cart(sessionID)
	order, err := s.checkout.Submit(ctx, store, in)
	if err != nil {
		return nil, err
	}
	store.RemovePromoCode(order.Pricing.PromoCode)

	if s.events != nil {
		if err := s.events.PublishOrderPlaced(ctx, messaging.NewOrderPlacedEvent(sessionID, order)); err != nil {
			s.logger.Warn("publish order event failed", zap.String("order_number", order.Number), zap.Error(err))
		}
	}
	return order, nil
}

func (s *Service) view(store *cartstore.Store) View {
	items, promo := store.Contents()
	if items == nil {
		items = []domain.LineItem{}
	}
	qty := 0
	for _, item := range items {
		qty += item.Quantity
	}
	return View{
		ID:            store.ID(),
		Currency:      s.engine.Currency(),
		Items:         items,
		TotalQuantity: qty,
		Promo:         promo,
		Pricing:       s.engine.Compute(items, promo),
		UpdatedAt:     store.UpdatedAt(),
	}
}

func lineItemFromAction(action UpdateAction) (domain.LineItem, error) {
	id := strings.TrimSpace(action.LineItemID)
	if id == "" {
		return domain.LineItem{}, fmt.Errorf("%w: lineItemId required", ErrInvalidAction)
	}
	if action.Price == nil {
		return domain.LineItem{}, fmt.Errorf("%w: price required", ErrInvalidAction)
	}
	kind := domain.LineItemKind(strings.ToLower(strings.TrimSpace(action.Kind)))
	if kind == "" {
		kind = domain.KindPart
	}
	item := domain.LineItem{
		ID:            id,
		Kind:          kind,
		Name:          strings.TrimSpace(action.Name),
		UnitPrice:     *action.Price,
		OriginalPrice: action.OriginalPrice,
		ShopID:        strings.TrimSpace(action.ShopID),
	}
	if kind == domain.KindLabor && (action.EstimatedMinutes > 0 || action.ScheduledDate != nil) {
		item.Schedule = &domain.LaborSchedule{
			EstimatedMinutes: action.EstimatedMinutes,
			ScheduledDate:    action.ScheduledDate,
		}
	}
	return item, nil
}
