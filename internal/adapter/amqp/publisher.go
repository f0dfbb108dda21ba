package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain/event"
)

// Config contains broker configuration
type Config struct {
	URL            string
	Exchange       string
	PublishTimeout time.Duration
}

// Envelope is the message body published for every domain event
type Envelope struct {
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher forwards domain events to a topic exchange. The routing key is
// the event name. The connection is (re)opened lazily on publish.
type Publisher struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// Ensure Publisher implements event.EventHandler
var _ event.EventHandler = (*Publisher)(nil)

// NewPublisher creates a new Publisher
func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	if cfg.Exchange == "" {
		cfg.Exchange = "estateshare.events"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Handle publishes the event
func (p *Publisher) Handle(e event.DomainEvent) error {
	body, err := encodeEnvelope(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
	defer cancel()

	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, p.cfg.Exchange, e.EventName(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    e.OccurredAt(),
		Type:         e.EventName(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("failed to publish %s: %w", e.EventName(), err)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (p *Publisher) HandledEvents() []string {
	return []string{"*"}
}

// Close closes the broker connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeLocked()
}

func (p *Publisher) ensureChannel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("publisher is closed")
	}
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.logger.Info("connected to event broker", zap.String("exchange", p.cfg.Exchange))
	p.conn = conn
	p.channel = ch
	return ch, nil
}

func (p *Publisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}

func encodeEnvelope(e event.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.EventName(), err)
	}
	return json.Marshal(Envelope{
		Name:       e.EventName(),
		OccurredAt: e.OccurredAt(),
		Payload:    payload,
	})
}
