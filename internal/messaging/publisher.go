package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"partsmarket/internal/domain"
	"partsmarket/internal/pricing"
)

const publishTimeout = 5 * time.Second

// OrderPlacedEvent is the message emitted after a successful checkout.
type OrderPlacedEvent struct {
	OrderNumber   string               `json:"orderNumber"`
	SessionID     string               `json:"sessionId"`
	Currency      string               `json:"currency"`
	GrandTotal    string               `json:"grandTotal"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	PartCount     int                  `json:"partCount"`
	LaborCount    int                  `json:"laborCount"`
	ShopIDs       []string             `json:"shopIds,omitempty"`
	PlacedAt      time.Time            `json:"placedAt"`
}

// NewOrderPlacedEvent summarises order for downstream consumers.
func NewOrderPlacedEvent(sessionID string, order *domain.Order) OrderPlacedEvent {
	ev := OrderPlacedEvent{
		OrderNumber:   order.Number,
		SessionID:     sessionID,
		Currency:      order.Currency,
		GrandTotal:    pricing.Format(order.Pricing.GrandTotal),
		PaymentMethod: order.PaymentMethod,
		PlacedAt:      order.CreatedAt,
	}
	seen := make(map[string]bool)
	for _, item := range order.Items {
		switch item.Kind {
		case domain.KindPart:
			ev.PartCount += item.Quantity
		case domain.KindLabor:
			ev.LaborCount += item.Quantity
		}
		if item.ShopID != "" && !seen[item.ShopID] {
			seen[item.ShopID] = true
			ev.ShopIDs = append(ev.ShopIDs, item.ShopID)
		}
	}
	return ev
}

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher writes JSON messages to one durable queue.
type Publisher struct {
	pool   *ChannelPool
	queue  string
	logger *zap.Logger
}

func NewPublisher(pool *ChannelPool, queue string, logger *zap.Logger) *Publisher {
	return &Publisher{pool: pool, queue: queue, logger: logger}
}

// PublishOrderPlaced sends ev as a persistent JSON message.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, ev OrderPlacedEvent) error {
	ch, err := p.pool.Get()
	if err != nil {
		return fmt.Errorf("get channel from pool: %w", err)
	}
	defer p.pool.Put(ch)
	return p.publish(ctx, ch, ev)
}

// PublishBid places msg on the publisher's queue, for feeding shop bids in
// from tooling.
func (p *Publisher) PublishBid(ctx context.Context, msg BidMessage) error {
	ch, err := p.pool.Get()
	if err != nil {
		return fmt.Errorf("get channel from pool: %w", err)
	}
	defer p.pool.Put(ch)
	return p.send(ctx, ch, "quote.bid", "", time.Now().UTC(), msg)
}

func (p *Publisher) publish(ctx context.Context, ch channelPublisher, ev OrderPlacedEvent) error {
	if err := p.send(ctx, ch, "order.placed", ev.OrderNumber, ev.PlacedAt, ev); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	p.logger.Debug("published order event", zap.String("order_number", ev.OrderNumber), zap.String("queue", p.queue))
	return nil
}

func (p *Publisher) send(ctx context.Context, ch channelPublisher, msgType, id string, ts time.Time, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    id,
			Timestamp:    ts,
			Type:         msgType,
			Body:         body,
		})
}
