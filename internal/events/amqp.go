package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the topic exchange events are published to; the event
	// type is the routing key.
	ExchangeName = "library.events"
	exchangeType = "topic"

	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	confirmTimeout = 5 * time.Second
)

// AMQPPublisher publishes events to RabbitMQ with publisher confirms.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
	logger   *slog.Logger
}

// DialAMQP connects to url, declares the exchange and enables confirms.
func DialAMQP(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		ExchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	logger = logger.With("component", "events", "exchange", ExchangeName)
	logger.Info("connected to RabbitMQ")

	return &AMQPPublisher{
		conn:     conn,
		channel:  channel,
		confirms: channel.NotifyPublish(make(chan amqp.Confirmation, 1)),
		logger:   logger,
	}, nil
}

// Publish sends the event with exponential backoff until the broker acknowledges it.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}

		if lastErr = p.publishOnce(ctx, event, body); lastErr == nil {
			p.logger.DebugContext(ctx, "event published",
				"event_id", event.EventID,
				"event_type", event.EventType,
			)
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		p.logger.WarnContext(ctx, "event publish failed, retrying",
			"attempt", attempt+1,
			"event_type", event.EventType,
			"error", lastErr,
		)
	}

	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

func (p *AMQPPublisher) publishOnce(ctx context.Context, event Event, body []byte) error {
	err := p.channel.PublishWithContext(
		ctx,
		ExchangeName,
		event.EventType,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now(),
			MessageId:     event.EventID,
			CorrelationId: event.CorrelationID,
			Body:          body,
			Headers: amqp.Table{
				"event_type":    event.EventType,
				"event_version": event.EventVersion,
			},
		},
	)
	if err != nil {
		return err
	}

	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			return amqp.ErrClosed
		}
		if !confirm.Ack {
			return fmt.Errorf("event not acknowledged")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(confirmTimeout):
		return fmt.Errorf("confirmation timeout")
	}
}

// IsHealthy reports whether the broker connection is still open.
func (p *AMQPPublisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("failed to close channel", "error", err)
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
