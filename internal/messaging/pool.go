// Package messaging connects the service to RabbitMQ: it publishes
// order-placed events and consumes the shop bid feed.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPoolExhausted is returned when every pooled channel is in use.
var ErrPoolExhausted = errors.New("no channels available in pool")

// ChannelPool hands out AMQP channels bound to one connection. Every channel
// has the pool's queues declared on it.
type ChannelPool struct {
	conn     *amqp.Connection
	channels chan *amqp.Channel
	queues   []string
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Dial connects to url and pre-creates size channels.
func Dial(url string, size int, logger *zap.Logger, queues ...string) (*ChannelPool, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	if size <= 0 {
		size = 4
	}

	pool := &ChannelPool{
		conn:     conn,
		channels: make(chan *amqp.Channel, size),
		queues:   queues,
		logger:   logger,
	}
	for i := 0; i < size; i++ {
		ch, err := pool.createChannel()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("create channel %d: %w", i, err)
		}
		pool.channels <- ch
	}

	logger.Info("rabbitmq channel pool ready", zap.Int("channels", size), zap.Strings("queues", queues))
	return pool, nil
}

// Connection exposes the underlying connection for consumers, which need
// channels of their own.
func (p *ChannelPool) Connection() *amqp.Connection {
	return p.conn
}

// Ping reports whether the broker connection is still open.
func (p *ChannelPool) Ping(context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (p *ChannelPool) createChannel() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	for _, q := range p.queues {
		if err := declareQueue(ch, q); err != nil {
			ch.Close()
			return nil, err
		}
	}
	return ch, nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// Get takes a channel from the pool, replacing it if the broker closed it.
func (p *ChannelPool) Get() (*amqp.Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, ErrPoolExhausted
		}
		if ch.IsClosed() {
			return p.createChannel()
		}
		return ch, nil
	default:
		return nil, ErrPoolExhausted
	}
}

// Put returns ch to the pool, closing it when the pool is full or closed.
func (p *ChannelPool) Put(ch *amqp.Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ch.Close()
		return
	}
	select {
	case p.channels <- ch:
	default:
		ch.Close()
	}
}

// Close shuts every pooled channel and the connection.
func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	close(p.channels)
	for ch := range p.channels {
		ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.logger.Info("rabbitmq channel pool closed")
}
