package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"partsmarket/internal/domain"
)

// BidSink receives bids decoded from the feed.
type BidSink interface {
	SubmitBid(ctx context.Context, quoteID string, bid domain.Bid) (domain.Bid, error)
}

// BidMessage is one shop bid on the feed.
type BidMessage struct {
	QuoteID        string          `json:"quoteId"`
	ShopID         string          `json:"shopId"`
	ShopName       string          `json:"shopName"`
	LaborCost      decimal.Decimal `json:"laborCost"`
	EstimatedTime  string          `json:"estimatedTime"`
	Warranty       string          `json:"warranty"`
	NextAvailable  *time.Time      `json:"nextAvailable"`
	Certifications []string        `json:"certifications"`
}

// Outcome tells the consumer loop how to settle a delivery.
type Outcome int

const (
	Ack Outcome = iota
	Reject
	Requeue
)

// BidConsumer feeds shop bids from a queue into running auctions.
type BidConsumer struct {
	conn   *amqp.Connection
	queue  string
	sink   BidSink
	logger *zap.Logger
}

func NewBidConsumer(conn *amqp.Connection, queue string, sink BidSink, logger *zap.Logger) *BidConsumer {
	return &BidConsumer{conn: conn, queue: queue, sink: sink, logger: logger}
}

// Run consumes until ctx is cancelled or the channel closes. Deliveries are
// acknowledged manually one at a time.
func (c *BidConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, c.queue); err != nil {
		return err
	}
	if err := ch.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx,
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("bid feed consumer started", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("bid feed delivery channel closed")
			}
			c.settle(d, c.Handle(ctx, d.Body))
		}
	}
}

func (c *BidConsumer) settle(d amqp.Delivery, outcome Outcome) {
	var err error
	switch outcome {
	case Ack:
		err = d.Ack(false)
	case Reject:
		err = d.Nack(false, false)
	case Requeue:
		err = d.Nack(false, true)
	}
	if err != nil {
		c.logger.Warn("settle delivery", zap.Uint64("tag", d.DeliveryTag), zap.Error(err))
	}
}

// Handle decodes one message and submits the bid. Malformed messages are
// rejected, domain rejections are acknowledged, and infrastructure failures
// are requeued.
func (c *BidConsumer) Handle(ctx context.Context, body []byte) Outcome {
	var msg BidMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Warn("malformed bid message", zap.Error(err))
		return Reject
	}
	if strings.TrimSpace(msg.QuoteID) == "" {
		c.logger.Warn("bid message without quote id", zap.String("shop_id", msg.ShopID))
		return Reject
	}

	bid, err := c.sink.SubmitBid(ctx, msg.QuoteID, domain.Bid{
		ShopID:         msg.ShopID,
		ShopName:       msg.ShopName,
		LaborCost:      msg.LaborCost,
		EstimatedTime:  msg.EstimatedTime,
		Warranty:       msg.Warranty,
		NextAvailable:  msg.NextAvailable,
		Certifications: msg.Certifications,
	})
	switch {
	case err == nil:
		c.logger.Info("bid ingested from feed",
			zap.String("quote_id", msg.QuoteID),
			zap.String("bid_id", bid.ID),
			zap.String("shop_id", bid.ShopID))
		return Ack
	case errors.Is(err, domain.ErrInvalidBid),
		errors.Is(err, domain.ErrAuctionExpired),
		errors.Is(err, domain.ErrNotFound):
		c.logger.Info("bid rejected",
			zap.String("quote_id", msg.QuoteID),
			zap.String("shop_id", msg.ShopID),
			zap.Error(err))
		return Ack
	default:
		c.logger.Warn("bid submission failed", zap.String("quote_id", msg.QuoteID), zap.Error(err))
		return Requeue
	}
}
