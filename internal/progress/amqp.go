package progress

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/JonMunkholm/rosterload/internal/core"
)

// Exchange and routing key used when none are configured.
const (
	DefaultExchange   = "ex.imports"
	DefaultRoutingKey = "import.progress"
)

// Publisher is the part of *amqp.Channel the sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes every update as a JSON message. Terminal updates are
// persistent; intermediate ones are transient.
type AMQPSink struct {
	pub        Publisher
	exchange   string
	routingKey string
}

// NewAMQPSink creates a sink publishing to exchange with routingKey.
func NewAMQPSink(pub Publisher, exchange, routingKey string) *AMQPSink {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if routingKey == "" {
		routingKey = DefaultRoutingKey
	}
	return &AMQPSink{pub: pub, exchange: exchange, routingKey: routingKey}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Report(ctx context.Context, u core.ProgressUpdate) error {
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	mode := amqp.Transient
	if u.Terminal() {
		mode = amqp.Persistent
	}

	err = s.pub.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    u.ImportID,
		Type:         string(u.State),
		DeliveryMode: mode,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish progress to %s: %w", s.exchange, err)
	}
	return nil
}

// AMQPConnection owns the connection and channel behind an AMQPSink.
type AMQPConnection struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

// DialAMQP connects to url, opens a channel and declares exchange as a
// durable direct exchange.
func DialAMQP(url, exchange string) (*AMQPConnection, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPConnection{Conn: conn, Ch: ch}, nil
}

// Close closes the channel and the connection.
func (c *AMQPConnection) Close() error {
	if err := c.Ch.Close(); err != nil {
		_ = c.Conn.Close()
		return err
	}
	return c.Conn.Close()
}
