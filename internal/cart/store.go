// Package cart holds the line items of one shopping session.
package cart

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"partsmarket/internal/domain"
	"partsmarket/internal/pricing"
)

// PromoResolver resolves a promo code string.
type PromoResolver interface {
	Resolve(code string) (domain.PromoCode, error)
}

// Store owns the rows and applied promo of a single cart. Every method runs
// to completion under the store's lock, so callers never observe a partial
// mutation.
type Store struct {
	mu        sync.Mutex
	id        string
	items     []domain.LineItem
	promo     *domain.PromoCode
	updatedAt time.Time
}

// NewStore returns an empty cart identified by id.
func NewStore(id string) *Store {
	return &Store{id: id, updatedAt: time.Now().UTC()}
}

// ID returns the cart identifier.
func (s *Store) ID() string {
	return s.id
}

// Add inserts item with the given quantity, or increments the quantity of the
// existing row with the same id.
func (s *Store) Add(item domain.LineItem, quantity int) error {
	if err := validateItem(item); err != nil {
		return err
	}
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidLineItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(item.ID); idx >= 0 {
		s.items[idx].Quantity += quantity
	} else {
		row := item.Clone()
		row.Quantity = quantity
		s.items = append(s.items, row)
	}
	s.touch()
	return nil
}

// UpdateQuantity sets the quantity of row id. A quantity <= 0 removes the
// row. Setting a positive quantity on a missing row returns domain.ErrNotFound.
func (s *Store) UpdateQuantity(id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if quantity <= 0 {
		if idx >= 0 {
			s.removeAt(idx)
			s.touch()
		}
		return nil
	}
	if idx < 0 {
		return domain.ErrNotFound
	}
	s.items[idx].Quantity = quantity
	s.touch()
	return nil
}

// Remove deletes row id. Removing an absent row is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(id); idx >= 0 {
		s.removeAt(idx)
		s.touch()
	}
}

// Clear drops every row. The applied promo is left alone.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.touch()
}

// RemoveOrdered takes the ordered quantities off their rows, dropping rows
// that reach zero. Rows or quantity added after the order was taken stay.
func (s *Store) RemoveOrdered(ordered []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range ordered {
		idx := s.indexOf(item.ID)
		if idx < 0 {
			continue
		}
		s.items[idx].Quantity -= item.Quantity
		if s.items[idx].Quantity <= 0 {
			s.removeAt(idx)
		}
	}
	if len(s.items) == 0 {
		s.items = nil
	}
	s.touch()
}

// Items returns a deep copy of the rows in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneLineItems(s.items)
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalQuantity sums the quantities of all rows.
func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice is the cart subtotal as computed by the pricing engine.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Subtotal(s.items)
}

// ApplyPromo resolves code and makes it the cart's only promo. On failure
// the previously applied promo is kept and the resolver's error is returned.
func (s *Store) ApplyPromo(r PromoResolver, code string) (domain.PromoCode, error) {
	promo, err := r.Resolve(code)
	if err != nil {
		return domain.PromoCode{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.promo = &promo
	s.touch()
	return promo, nil
}

// RemovePromo clears the applied promo, if any.
func (s *Store) RemovePromo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promo != nil {
		s.promo = nil
		s.touch()
	}
}

// RemovePromoCode clears the applied promo only when it is still code.
func (s *Store) RemovePromoCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promo != nil && s.promo.Code == code {
		s.promo = nil
		s.touch()
	}
}

// Promo returns a copy of the applied promo or nil.
func (s *Store) Promo() *domain.PromoCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promoCopy()
}

// Contents returns a consistent copy of rows and promo taken under one lock.
func (s *Store) Contents() ([]domain.LineItem, *domain.PromoCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneLineItems(s.items), s.promoCopy()
}

// Snapshot prices the current contents with e.
func (s *Store) Snapshot(e *pricing.Engine) domain.PricingSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.Compute(s.items, s.promo)
}

// UpdatedAt returns the time of the last mutation.
func (s *Store) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Store) promoCopy() *domain.PromoCode {
	if s.promo == nil {
		return nil
	}
	p := *s.promo
	return &p
}

func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(idx int) {
	s.items = append(s.items[:idx], s.items[idx+1:]...)
}

func (s *Store) touch() {
	s.updatedAt = time.Now().UTC()
}

func validateItem(item domain.LineItem) error {
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: id required", domain.ErrInvalidLineItem)
	}
	if !item.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidLineItem, item.Kind)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidLineItem)
	}
	if item.OriginalPrice != nil && item.OriginalPrice.IsNegative() {
		return fmt.Errorf("%w: original price must not be negative", domain.ErrInvalidLineItem)
	}
	return nil
}
