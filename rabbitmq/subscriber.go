// Package rabbitmq connects the review pipeline to the platform's event
// broker. The subscriber feeds review requests to the admission controller;
// the publisher broadcasts completed outcomes.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"event-review-pipeline/metrics"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

// Message represents a received RabbitMQ message.
type Message struct {
	Body        []byte
	RoutingKey  string
	Exchange    string
	ContentType string
	Timestamp   time.Time
	DeliveryTag uint64
}

// UnmarshalTo unmarshals the message body into the provided interface.
func (m *Message) UnmarshalTo(v any) error {
	return json.Unmarshal(m.Body, v)
}

// CallbackFunc processes a message. Return:
// - nil on success (will Ack)
// - Permanent(err) for permanent failure (will Nack requeue=false)
// - any other error for transient failure (will be republished for retry)
type CallbackFunc func(msg *Message) error

// PermanentError marks a message processing failure as non-retriable.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError (non-retriable).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

const (
	defaultConcurrency = 8
	envConcurrency     = "RABBITMQ_CONCURRENCY"

	defaultMaxRetries = 5
	envMaxRetries     = "RABBITMQ_MAX_RETRIES"

	defaultRetryExchangePrefix = "everforest-retry."
	envRetryExchangePrefix     = "RABBITMQ_RETRY_EXCHANGE_PREFIX"
	retryCountHeaderKey        = "x-everforest-retry-count"
)

func subscriberConcurrency() int {
	if v := os.Getenv(envConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Warnf("rabbitmq: invalid %s=%q, using default=%d", envConcurrency, v, defaultConcurrency)
	}
	return defaultConcurrency
}

func subscriberMaxRetries() int {
	if v := os.Getenv(envMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		log.Warnf("rabbitmq: invalid %s=%q, using default=%d", envMaxRetries, v, defaultMaxRetries)
	}
	return defaultMaxRetries
}

func retryExchangeFor(queue string) string {
	prefix := os.Getenv(envRetryExchangePrefix)
	if prefix == "" {
		prefix = defaultRetryExchangePrefix
	}
	return prefix + queue
}

func retryCountFromHeaders(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	v, ok := headers[retryCountHeaderKey]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case int:
		if t < 0 {
			return 0
		}
		return t
	case int32:
		if t < 0 {
			return 0
		}
		return int(t)
	case int64:
		if t < 0 {
			return 0
		}
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil && n >= 0 {
			return n
		}
		return 0
	default:
		return 0
	}
}

func withRetryCountHeader(headers amqp.Table, next int) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	if next < 0 {
		next = 0
	}
	out[retryCountHeaderKey] = int32(next)
	return out
}

// Subscriber consumes review requests from the broker with a bounded worker
// pool. Acks happen only after the callback finishes; transient failures are
// republished through a retry exchange with a bounded attempt count.
type Subscriber struct {
	amqpURL  string
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	prefetch int

	// opMu serializes amqp operations; amqp.Channel is not safe for concurrent use.
	opMu sync.Mutex

	startOnce sync.Once
	done      chan struct{}

	connected      atomic.Bool
	lastConnectNs  atomic.Int64
	lastDeliveryNs atomic.Int64
	lastError      atomic.Value // string
}

// NewSubscriber creates a subscriber bound to the given exchange and queue.
// It fails fast when the broker is unreachable.
func NewSubscriber(amqpURL, exchangeName, queueName string, prefetchCount int) (*Subscriber, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s := &Subscriber{
		amqpURL:  amqpURL,
		exchange: exchangeName,
		queue:    queueName,
		prefetch: prefetchCount,
		done:     make(chan struct{}),
	}

	s.opMu.Lock()
	err := s.reconnectLocked(ctx)
	s.opMu.Unlock()
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Subscriber) setLastError(err error) {
	if err == nil {
		s.lastError.Store("")
		return
	}
	s.lastError.Store(err.Error())
}

func (s *Subscriber) markDisconnected(err error) {
	s.connected.Store(false)
	metrics.RabbitMQConnected.Set(0)
	s.setLastError(err)
}

// reconnectLocked tears down any existing channel/connection and recreates
// them. Caller must hold s.opMu.
func (s *Subscriber) reconnectLocked(ctx context.Context) error {
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	conn, err := amqp.Dial(s.amqpURL)
	if err != nil {
		s.markDisconnected(err)
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		s.markDisconnected(err)
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(s.exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		s.markDisconnected(err)
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(s.queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		s.markDisconnected(err)
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	s.queue = q.Name

	select {
	case <-ctx.Done():
		_ = ch.Close()
		_ = conn.Close()
		s.markDisconnected(ctx.Err())
		return fmt.Errorf("context timeout while connecting subscriber: %w", ctx.Err())
	default:
	}

	s.conn = conn
	s.channel = ch
	s.connected.Store(true)
	metrics.RabbitMQConnected.Set(1)

	now := time.Now()
	s.lastConnectNs.Store(now.UnixNano())
	metrics.RabbitMQLastConnectSeconds.Set(float64(now.Unix()))

	s.setLastError(nil)
	return nil
}

// Start begins consuming messages and dispatching them to the routing key
// callbacks. Each routing key is bound to the subscriber's queue.
func (s *Subscriber) Start(routingKeyCallbacks map[string]CallbackFunc) error {
	s.startOnce.Do(func() {
		workers := subscriberConcurrency()
		if s.prefetch > 0 && workers > s.prefetch {
			workers = s.prefetch
		}

		jobs := make(chan amqp.Delivery, workers)
		maxRetries := subscriberMaxRetries()

		for i := 0; i < workers; i++ {
			workerID := i + 1
			go func() {
				for delivery := range jobs {
					s.handleDelivery(workerID, delivery, routingKeyCallbacks, maxRetries)
				}
			}()
		}

		go s.consumeLoop(jobs, routingKeyCallbacks, workers)
	})
	return nil
}

// handleDelivery runs one callback and settles the delivery. Panics in the
// callback are treated as permanent failures.
func (s *Subscriber) handleDelivery(workerID int, delivery amqp.Delivery, callbacks map[string]CallbackFunc, maxRetries int) {
	startedAt := time.Now()
	s.lastDeliveryNs.Store(startedAt.UnixNano())
	metrics.RabbitMQLastDeliverySeconds.Set(float64(startedAt.Unix()))

	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	logger := log.WithFields(log.Fields{
		"worker_id":    workerID,
		"queue":        s.queue,
		"routing_key":  delivery.RoutingKey,
		"delivery_tag": delivery.DeliveryTag,
	})
	logger.Debug("rabbitmq worker start")

	callback, exists := callbacks[delivery.RoutingKey]
	if !exists {
		s.nack(delivery, false)
		s.finish("permanent_error", startedAt)
		logger.Warn("no callback for routing key, dropped")
		return
	}

	msg := &Message{
		Body:        delivery.Body,
		RoutingKey:  delivery.RoutingKey,
		Exchange:    delivery.Exchange,
		ContentType: delivery.ContentType,
		Timestamp:   delivery.Timestamp,
		DeliveryTag: delivery.DeliveryTag,
	}

	var callbackErr error
	panicked := func() (p bool) {
		defer func() {
			if r := recover(); r != nil {
				p = true
				logger.Errorf("callback panicked: %v", r)
			}
		}()
		callbackErr = callback(msg)
		return false
	}()

	switch {
	case panicked:
		s.nack(delivery, false)
		s.finish("panic", startedAt)
	case callbackErr == nil:
		s.ack(delivery)
		s.finish("success", startedAt)
		logger.Debugf("rabbitmq worker finish duration=%s", time.Since(startedAt))
	case isPermanent(callbackErr):
		s.nack(delivery, false)
		s.finish("permanent_error", startedAt)
		logger.WithError(callbackErr).Warn("permanent failure, dropped")
	default:
		s.retry(delivery, maxRetries, logger)
		s.finish("transient_error", startedAt)
	}
}

// retry republishes the delivery through the retry exchange with a bumped
// attempt counter, then acks the original so the queue does not tight-loop.
// Past maxRetries the message is dropped.
func (s *Subscriber) retry(delivery amqp.Delivery, maxRetries int, logger *log.Entry) {
	attempts := retryCountFromHeaders(delivery.Headers)
	if attempts >= maxRetries {
		s.nack(delivery, false)
		logger.Warnf("retries exhausted after %d attempts, dropped", attempts)
		return
	}

	pub := amqp.Publishing{
		Headers:      withRetryCountHeader(delivery.Headers, attempts+1),
		ContentType:  delivery.ContentType,
		Body:         delivery.Body,
		DeliveryMode: delivery.DeliveryMode,
		Timestamp:    delivery.Timestamp,
	}

	s.opMu.Lock()
	publishErr := s.channel.Publish(retryExchangeFor(s.queue), delivery.RoutingKey, false, false, pub)
	s.opMu.Unlock()

	if publishErr != nil {
		metrics.RetryPublishErrorsTotal.Inc()
		logger.WithError(publishErr).Error("retry publish failed, requeueing in place")
		s.nack(delivery, true)
		return
	}

	s.ack(delivery)
	logger.Infof("scheduled retry attempt %d of %d", attempts+1, maxRetries)
}

func (s *Subscriber) ack(delivery amqp.Delivery) {
	s.opMu.Lock()
	err := delivery.Ack(false)
	s.opMu.Unlock()
	if err != nil {
		metrics.AckErrorsTotal.Inc()
	}
}

func (s *Subscriber) nack(delivery amqp.Delivery, requeue bool) {
	s.opMu.Lock()
	err := delivery.Nack(false, requeue)
	s.opMu.Unlock()
	if err != nil {
		metrics.NackErrorsTotal.Inc()
	}
}

func (s *Subscriber) finish(result string, startedAt time.Time) {
	metrics.ProcessedTotal.WithLabelValues(result).Inc()
	metrics.ProcessingDurationSeconds.WithLabelValues(result).Observe(time.Since(startedAt).Seconds())
}

// consumeLoop keeps a consumer open against the queue. When the broker
// restarts the delivery channel closes; the loop reconnects with backoff,
// re-applies QoS and bindings, and resumes.
func (s *Subscriber) consumeLoop(jobs chan amqp.Delivery, callbacks map[string]CallbackFunc, workers int) {
	backoff := 1 * time.Second
	sleep := func() {
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}

	for {
		select {
		case <-s.done:
			close(jobs)
			return
		default:
		}

		msgs, err := s.openConsumer(callbacks, workers)
		if err != nil {
			log.WithError(err).Errorf("rabbitmq consumer setup failed queue=%s", s.queue)
			sleep()
			continue
		}

		log.Infof("rabbitmq consuming exchange=%s queue=%s workers=%d", s.exchange, s.queue, workers)
		backoff = 1 * time.Second

		for {
			select {
			case <-s.done:
				close(jobs)
				return
			case delivery, ok := <-msgs:
				if !ok {
					s.markDisconnected(errors.New("delivery channel closed"))
					log.Warnf("rabbitmq delivery channel closed queue=%s, reconnecting", s.queue)
					sleep()
					goto Reconnect
				}
				jobs <- delivery
			}
		}

	Reconnect:
		continue
	}
}

func (s *Subscriber) openConsumer(callbacks map[string]CallbackFunc, workers int) (<-chan amqp.Delivery, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.conn == nil || s.conn.IsClosed() || s.channel == nil {
		if err := s.reconnectLocked(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.channel.Qos(workers, 0, false); err != nil {
		s.markDisconnected(err)
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	for routingKey := range callbacks {
		if err := s.channel.QueueBind(s.queue, routingKey, s.exchange, false, nil); err != nil {
			s.markDisconnected(err)
			return nil, fmt.Errorf("failed to bind %s: %w", routingKey, err)
		}
	}

	msgs, err := s.channel.Consume(s.queue, "", false, false, false, false, nil)
	if err != nil {
		s.markDisconnected(err)
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

// Close closes the subscriber connection and channel.
func (s *Subscriber) Close() error {
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}

	var err error
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.channel != nil {
		if channelErr := s.channel.Close(); channelErr != nil {
			log.Warnf("Failed to close channel: %v", channelErr)
			err = channelErr
		}
		s.channel = nil
	}

	if s.conn != nil {
		if connErr := s.conn.Close(); connErr != nil {
			log.Warnf("Failed to close connection: %v", connErr)
			if err == nil {
				err = connErr
			}
		}
		s.conn = nil
	}

	s.connected.Store(false)
	metrics.RabbitMQConnected.Set(0)
	return err
}

// IsConnected indicates if the subscriber is currently connected (best-effort).
func (s *Subscriber) IsConnected() bool {
	if s.conn == nil || s.channel == nil {
		return false
	}
	if s.conn.IsClosed() {
		return false
	}
	return s.connected.Load()
}

// LastConnectAt returns the last time we successfully (re)connected.
func (s *Subscriber) LastConnectAt() time.Time {
	ns := s.lastConnectNs.Load()
	if ns <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// LastDeliveryAt returns the last time we observed a delivery.
func (s *Subscriber) LastDeliveryAt() time.Time {
	ns := s.lastDeliveryNs.Load()
	if ns <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// LastError returns the last connection/consumption error string (best-effort).
func (s *Subscriber) LastError() string {
	v := s.lastError.Load()
	if v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return ""
}

// GetExchange returns the exchange name.
func (s *Subscriber) GetExchange() string { return s.exchange }

// GetQueue returns the queue name.
func (s *Subscriber) GetQueue() string { return s.queue }
