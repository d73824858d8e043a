package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"partsmarket/internal/auction"
	"partsmarket/internal/domain"
)

type fakeChannel struct {
	key string
	msg amqp.Publishing
	err error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		Number:        "ORD-00000007",
		Currency:      "USD",
		PaymentMethod: domain.PaymentPayAtShop,
		Pricing:       domain.PricingSnapshot{GrandTotal: decimal.RequireFromString("215.995")},
		Items: []domain.LineItem{
			{ID: "A", Kind: domain.KindPart, Quantity: 2, ShopID: "shop-1"},
			{ID: "B", Kind: domain.KindLabor, Quantity: 1, ShopID: "shop-1"},
			{ID: "C", Kind: domain.KindPart, Quantity: 1, ShopID: "shop-2"},
		},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewOrderPlacedEvent(t *testing.T) {
	ev := NewOrderPlacedEvent("s1", sampleOrder())
	assert.Equal(t, "ORD-00000007", ev.OrderNumber)
	assert.Equal(t, "216.00", ev.GrandTotal)
	assert.Equal(t, 3, ev.PartCount)
	assert.Equal(t, 1, ev.LaborCount)
	assert.Equal(t, []string{"shop-1", "shop-2"}, ev.ShopIDs)
}

func TestPublisher_Publish(t *testing.T) {
	p := NewPublisher(nil, "orders.placed", zap.NewNop())
	ch := &fakeChannel{}

	require.NoError(t, p.publish(context.Background(), ch, NewOrderPlacedEvent("s1", sampleOrder())))
	assert.Equal(t, "orders.placed", ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "ORD-00000007", ch.msg.MessageId)

	var decoded OrderPlacedEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "s1", decoded.SessionID)
}

func TestPublisher_SendBid(t *testing.T) {
	p := NewPublisher(nil, "quotes.bids", zap.NewNop())
	ch := &fakeChannel{}
	msg := BidMessage{QuoteID: "q1", ShopID: "shop-9", LaborCost: decimal.RequireFromString("70")}

	require.NoError(t, p.send(context.Background(), ch, "quote.bid", "", time.Now(), msg))
	assert.Equal(t, "quote.bid", ch.msg.Type)

	// what the seeder publishes must be what the consumer accepts
	sink := &stubSink{}
	c := NewBidConsumer(nil, "quotes.bids", sink, zap.NewNop())
	assert.Equal(t, Ack, c.Handle(context.Background(), ch.msg.Body))
	assert.Equal(t, "q1", sink.quoteID)
	assert.True(t, sink.bid.LaborCost.Equal(msg.LaborCost))
}

func TestPublisher_PublishError(t *testing.T) {
	p := NewPublisher(nil, "orders.placed", zap.NewNop())
	boom := errors.New("channel closed")
	err := p.publish(context.Background(), &fakeChannel{err: boom}, OrderPlacedEvent{})
	assert.ErrorIs(t, err, boom)
}

type stubSink struct {
	quoteID string
	bid     domain.Bid
	err     error
}

func (s *stubSink) SubmitBid(_ context.Context, quoteID string, bid domain.Bid) (domain.Bid, error) {
	s.quoteID = quoteID
	s.bid = bid
	if s.err != nil {
		return domain.Bid{}, s.err
	}
	bid.ID = "bid-1"
	return bid, nil
}

func TestBidConsumer_Handle(t *testing.T) {
	valid := `{"quoteId":"q1","shopId":"shop-9","shopName":"Corner Garage","laborCost":"85.50","certifications":["ASE"]}`
	cases := []struct {
		name string
		body string
		err  error
		want Outcome
	}{
		{"accepted", valid, nil, Ack},
		{"malformed json", `{"quoteId":`, nil, Reject},
		{"bad cost", `{"quoteId":"q1","laborCost":"abc"}`, nil, Reject},
		{"missing quote", `{"shopId":"shop-9","laborCost":10}`, nil, Reject},
		{"invalid bid", valid, domain.ErrInvalidBid, Ack},
		{"auction closed", valid, domain.ErrAuctionExpired, Ack},
		{"unknown quote", valid, domain.ErrNotFound, Ack},
		{"runner stopped", valid, auction.ErrStopped, Requeue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &stubSink{err: tc.err}
			c := NewBidConsumer(nil, "quotes.bids", sink, zap.NewNop())
			assert.Equal(t, tc.want, c.Handle(context.Background(), []byte(tc.body)))
		})
	}
}

func TestBidConsumer_HandleMapsFields(t *testing.T) {
	sink := &stubSink{}
	c := NewBidConsumer(nil, "quotes.bids", sink, zap.NewNop())
	body := `{"quoteId":"q1","shopId":"shop-9","shopName":"Corner Garage","laborCost":85.5,"warranty":"12 months"}`

	require.Equal(t, Ack, c.Handle(context.Background(), []byte(body)))
	assert.Equal(t, "q1", sink.quoteID)
	assert.Equal(t, "shop-9", sink.bid.ShopID)
	assert.Equal(t, "12 months", sink.bid.Warranty)
	assert.True(t, sink.bid.LaborCost.Equal(decimal.RequireFromString("85.50")))
}
