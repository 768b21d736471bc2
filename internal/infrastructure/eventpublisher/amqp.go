package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/iho/transferengine/internal/domain"
)

// ErrNotConfirmed is returned when the broker nacks a message.
var ErrNotConfirmed = errors.New("broker did not confirm message")

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithDeferredConfirmWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) (*amqp.DeferredConfirmation, error)
	Close() error
}

// AMQPConfig configures AMQPPublisher.
type AMQPConfig struct {
	Exchange       string
	ConfirmTimeout time.Duration
	// Breaker opens after this many consecutive failures.
	MaxFailures uint32
	OpenTimeout time.Duration
}

// AMQPPublisher publishes outbox events to a topic exchange with publisher
// confirms. The event type is the routing key. Calls go through a circuit
// breaker so a dead broker does not stall every poll.
type AMQPPublisher struct {
	mu      sync.Mutex
	ch      Channel
	cfg     AMQPConfig
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// DialAMQP connects to url, declares the exchange and enables confirm mode.
func DialAMQP(url string, cfg AMQPConfig, logger zerolog.Logger) (*AMQPPublisher, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange %q: %w", cfg.Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to enable confirm mode: %w", err)
	}

	return NewAMQPPublisher(ch, cfg, logger), conn, nil
}

// NewAMQPPublisher wraps an already configured channel.
func NewAMQPPublisher(ch Channel, cfg AMQPConfig, logger zerolog.Logger) *AMQPPublisher {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 5 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	logger = logger.With().Str("component", "amqp_publisher").Str("exchange", cfg.Exchange).Logger()

	settings := gobreaker.Settings{
		Name:        "amqp:" + cfg.Exchange,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &AMQPPublisher{
		ch:      ch,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Publish sends event and waits for the broker confirm.
func (p *AMQPPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	body, err := json.Marshal(envelope{
		ID:            event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    event.CreatedAt,
		Payload:       event.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publish(ctx, event, body)
	})
	return err
}

// State reports the breaker state, for health checks.
func (p *AMQPPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the channel.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

// publish is serialized so confirms arrive in order.
func (p *AMQPPublisher) publish(ctx context.Context, event *domain.OutboxEvent, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	defer cancel()

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.cfg.Exchange, event.EventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.EventType,
		Timestamp:    event.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if confirm == nil {
		// Channel is not in confirm mode.
		return nil
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}

	p.logger.Debug().Str("event_id", event.ID).Str("event_type", event.EventType).Msg("event confirmed")
	return nil
}

type envelope struct {
	ID            string         `json:"id"`
	EventType     string         `json:"event_type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload"`
}
