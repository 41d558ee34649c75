package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// DialTimeout caps connection setup when the caller's context has no
// earlier deadline.
const DialTimeout = 5 * time.Second

// Publisher sends RoleChangedEvent messages to RabbitMQ.  It dials per
// publish: mutations are rare admin operations and a fresh connection
// keeps the publisher free of reconnect state.
type Publisher struct {
	url string
	log *logrus.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *logrus.Logger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{url: url, log: log}
}

// PublishRoleChanged publishes ev as a persistent JSON message.  Connection
// setup, including the AMQP handshake, is bounded by ctx's deadline.
// Errors are returned, not logged; the caller decides what they mean.
func (p *Publisher) PublishRoleChanged(ctx context.Context, ev RoleChangedEvent) error {
	timeout, err := dialTimeout(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", RoleChangedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	p.log.WithFields(logrus.Fields{"queue": RoleChangedQueue, "kind": ev.Kind}).Debug("audit event published")
	return nil
}

// dialTimeout returns the time left before ctx's deadline, capped at
// DialTimeout.
func dialTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return DialTimeout, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	return min(left, DialTimeout), nil
}

// declare makes sure the durable queue exists; it is idempotent.
func declare(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(RoleChangedQueue, true, false, false, false, nil)
	return err
}
