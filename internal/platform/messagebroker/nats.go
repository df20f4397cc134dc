package messagebroker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Message is the broker-neutral view of a received message.
type Message interface {
	Subject() string
	Data() []byte
}

// Subscription is a handle for an active queue subscription.
type Subscription interface {
	Drain() error
	Unsubscribe() error
}

// NATSClient abstracts the broker operations the services need, so app code
// and tests never hold a *nats.Conn directly.
type NATSClient interface {
	Publish(ctx context.Context, subject string, data []byte) error
	SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler func(msg Message)) (Subscription, error)
	Close()
}

type natsMessage struct {
	msg *nats.Msg
}

func (m *natsMessage) Subject() string { return m.msg.Subject }
func (m *natsMessage) Data() []byte    { return m.msg.Data }

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Drain() error       { return s.sub.Drain() }
func (s *natsSubscription) Unsubscribe() error { return s.sub.Unsubscribe() }

type natsClient struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSClient connects to NATS with reconnect handling.
// natsURL example: "nats://localhost:4222"
func NewNATSClient(natsURL, appName string, logger *slog.Logger) (NATSClient, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(appName),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed", "last_error", nc.LastError())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}
	return &natsClient{conn: nc, logger: logger}, nil
}

func (c *natsClient) Publish(_ context.Context, subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %q: %w", subject, err)
	}
	return nil
}

func (c *natsClient) SubscribeToSubjectWithQueue(_ context.Context, subject, queueGroup string, handler func(msg Message)) (Subscription, error) {
	sub, err := c.conn.QueueSubscribe(subject, queueGroup, func(m *nats.Msg) {
		handler(&natsMessage{msg: m})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %q (queue %q): %w", subject, queueGroup, err)
	}
	c.logger.Info("Subscribed to NATS subject", "subject", subject, "queue_group", queueGroup)
	return &natsSubscription{sub: sub}, nil
}

func (c *natsClient) Close() {
	if c.conn != nil && !c.conn.IsClosed() {
		// Drain flushes buffered published messages before closing.
		if err := c.conn.Drain(); err != nil {
			c.logger.Warn("Error draining NATS connection", "error", err)
		}
	}
}
