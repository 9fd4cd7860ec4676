package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"event-review-pipeline/models"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

// Publisher broadcasts completed review outcomes to the platform exchange.
type Publisher struct {
	mu         sync.Mutex
	amqpURL    string
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewPublisher creates a publisher bound to the given exchange and routing key.
func NewPublisher(amqpURL, exchangeName, routingKey string) (*Publisher, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	p := &Publisher{
		amqpURL:    amqpURL,
		exchange:   exchangeName,
		routingKey: routingKey,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// PublishOutcome broadcasts one completed review outcome.
func (p *Publisher) PublishOutcome(ctx context.Context, outcome *models.ReviewOutcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome to JSON: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	return p.publish(ctx, p.routingKey, publishing)
}

// Close closes the publisher connection and channel
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error

	if p.channel != nil {
		if channelErr := p.channel.Close(); channelErr != nil {
			log.Warnf("Failed to close channel: %v", channelErr)
			err = channelErr
		}
	}

	if p.conn != nil {
		if connErr := p.conn.Close(); connErr != nil {
			log.Warnf("Failed to close connection: %v", connErr)
			if err == nil {
				err = connErr
			}
		}
	}

	return err
}

func (p *Publisher) connectLocked(ctx context.Context) error {
	conn, err := amqp.Dial(p.amqpURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	select {
	case <-ctx.Done():
		ch.Close()
		conn.Close()
		return fmt.Errorf("context timeout while creating publisher: %w", ctx.Err())
	default:
	}

	p.conn = conn
	p.channel = ch
	return nil
}

func (p *Publisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func isConnClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "channel/connection is not open")
}

// publish sends one message, reconnecting once if the channel went away.
func (p *Publisher) publish(ctx context.Context, routingKey string, publishing amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.channel == nil {
		p.closeLocked()
		if err := p.connectLocked(ctx); err != nil {
			return err
		}
	}

	err := p.channel.Publish(p.exchange, routingKey, false, false, publishing)
	if err != nil && isConnClosedErr(err) {
		p.closeLocked()
		if connErr := p.connectLocked(ctx); connErr != nil {
			return fmt.Errorf("failed to publish message: %w (reconnect failed: %v)", err, connErr)
		}
		err = p.channel.Publish(p.exchange, routingKey, false, false, publishing)
	}
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("context timeout while publishing message: %w", ctx.Err())
	default:
	}
	return nil
}

// IsConnected indicates whether the publisher currently has an open connection/channel.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed() && p.channel != nil
}
