package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AuditConsumer drains rbac.role_changed and appends one line per event to
// an audit log file.
type AuditConsumer struct {
	url     string
	logPath string
	log     *logrus.Logger
}

// NewAuditConsumer returns a consumer writing to logPath.
func NewAuditConsumer(url, logPath string, log *logrus.Logger) *AuditConsumer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuditConsumer{url: url, logPath: logPath, log: log}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff capped at 30s.  It returns ctx.Err() on shutdown.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("audit-consumer: dial failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.WithError(err).Warn("audit-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("audit-consumer: set QoS failed")
	}
	if err := declare(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(RoleChangedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.WithError(err).Warn("audit-consumer: handle message failed")
				_ = d.Nack(false, false) // drop, requeueing a bad payload would loop
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends it to the audit log.
func (c *AuditConsumer) Handle(body []byte) error {
	var ev RoleChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Kind == "" {
		return errors.New("event without kind")
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single audit log line.
func FormatLine(ev RoleChangedEvent) string {
	line := fmt.Sprintf("[%s] %s | actor_id=%d | role=%q",
		ev.At.UTC().Format(time.RFC3339), ev.Kind, ev.ActorID, ev.Role)
	if ev.SubjectID != 0 {
		line += fmt.Sprintf(" | subject_id=%d", ev.SubjectID)
	}
	if ev.Resource != "" || ev.Action != "" {
		line += fmt.Sprintf(" | permission=%s:%s", ev.Resource, ev.Action)
	}
	return line + "\n"
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
