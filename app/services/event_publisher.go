// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/utils"
)

// Event routing keys
const (
	EventCommunicationSent   = "communication.sent"
	EventCommunicationFailed = "communication.failed"
	EventPartnerApproved     = "partner.approved"
	EventPartnerRejected     = "partner.rejected"
	EventInvestorApproved    = "investor.approved"
	EventInvestorRejected    = "investor.rejected"
	EventLeadCreated         = "lead.created"
	EventOfferCreated        = "offer.created"
)

// Event is the envelope published for every domain event
type Event struct {
	Type       string         `json:"type"`
	EntityID   uint           `json:"entity_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType string, entityID uint, data map[string]any) Event {
	return Event{Type: eventType, EntityID: entityID, OccurredAt: utils.UTCNow(), Data: data}
}

// EventPublisher fans domain events out to other systems
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// RabbitMQPublisher publishes persistent JSON messages to a durable topic exchange.
// The routing key is the event type.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitMQPublisher(url, exchange string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// LogEventPublisher writes events to the log when no broker is configured
type LogEventPublisher struct {
	logger *zap.Logger
}

func NewLogEventPublisher(logger *zap.Logger) EventPublisher {
	return &LogEventPublisher{logger: logger}
}

func (p *LogEventPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Debug("event", zap.String("type", event.Type), zap.Uint("entity_id", event.EntityID), zap.Any("data", event.Data))
	return nil
}

func (p *LogEventPublisher) Close() error { return nil }
