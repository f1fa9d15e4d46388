package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

// DefaultQueue receives audit events when no queue is configured
const DefaultQueue = "bokohub.audit"

// publisher is the part of *amqp.Channel used to publish
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher forwards audit events to a durable RabbitMQ queue after
// handing them to the wrapped logger. Publish failures are logged and never
// reach the caller.
type AMQPPublisher struct {
	next    domain.AuditLogger
	pub     publisher
	queue   string
	timeout time.Duration
	logger  *zap.Logger
	closers []func() error
}

// DialAMQPPublisher connects to url, declares queue and wraps next
func DialAMQPPublisher(url, queue string, next domain.AuditLogger, logger *zap.Logger) (*AMQPPublisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}

	p := newAMQPPublisher(ch, queue, next, logger)
	p.closers = []func() error{ch.Close, conn.Close}
	return p, nil
}

func newAMQPPublisher(pub publisher, queue string, next domain.AuditLogger, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{
		next:    next,
		pub:     pub,
		queue:   queue,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// LogEvent implements domain.AuditLogger
func (p *AMQPPublisher) LogEvent(ctx context.Context, event *domain.AuditEvent) {
	if p.next != nil {
		p.next.LogEvent(ctx, event)
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("rabbitmq: marshal audit event failed", zap.Error(err))
		return
	}

	// Detached from the request so a cancelled client does not drop the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.pub.PublishWithContext(pubCtx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Type:         string(event.EventType),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Warn("rabbitmq: publish audit event failed",
			zap.String("event_type", string(event.EventType)),
			zap.Error(err))
	}
}

// Close releases the channel and connection
func (p *AMQPPublisher) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ domain.AuditLogger = (*AMQPPublisher)(nil)
