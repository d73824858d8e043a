package order

import (
	"context"

	"partsmarket/internal/domain"
)

// Repository persists placed orders. It doubles as the Order Service used by
// checkout when no remote service is configured.
type Repository interface {
	CreateOrder(ctx context.Context, payload domain.OrderPayload) (*domain.OrderConfirmation, error)
	GetByNumber(ctx context.Context, sessionID, number string) (*domain.Order, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Order, error)
}
