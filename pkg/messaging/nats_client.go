package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsConfig holds configuration for the NATS connection.
type NatsConfig struct {
	URL      string
	Username string
	Password string
	// MaxReconnects sets the number of reconnect attempts
	MaxReconnects int
	// ReconnectWait sets the time to wait between reconnect attempts
	ReconnectWait time.Duration
}

// Client wraps the NATS connection and JetStream context.
type Client struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Handler processes one delivery. A nil return acks the message; an error
// terminates it without redelivery (at-most-once, so destructive response
// actions never re-run on a poison message).
type Handler func(subject string, data []byte) error

// NewClient creates a new NATS client with JetStream support.
func NewClient(config *NatsConfig) (*Client, error) {
	opts := []nats.Option{
		nats.Name("Kestrel-Backplane"),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
	}

	if config.Username != "" && config.Password != "" {
		opts = append(opts, nats.UserInfo(config.Username, config.Password))
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init failed: %w", err)
	}

	return &Client{nc: nc, js: js}, nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

// Connection returns the underlying NATS connection.
func (c *Client) Connection() *nats.Conn {
	return c.nc
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// PublishAsync publishes a message asynchronously to JetStream.
func (c *Client) PublishAsync(ctx context.Context, subject string, data []byte) (jetstream.PubAckFuture, error) {
	return c.js.PublishAsync(subject, data)
}

// PublishSync publishes a message and waits for the stream ack.
// Use this when delivery must be confirmed before proceeding (alerts).
func (c *Client) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	return c.js.Publish(ctx, subject, data)
}

// QueueSubscribe creates a durable pull consumer and starts consuming.
// maxAckPending bounds in-flight deliveries per consumer and is the
// backpressure window (the bus-side prefetch).
func (c *Client) QueueSubscribe(ctx context.Context, stream, subject, consumerName string, maxAckPending int, handler Handler) (jetstream.ConsumeContext, error) {
	cfg := jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		FilterSubject: subject,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: maxAckPending,
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		if err := handler(msg.Subject(), msg.Data()); err != nil {
			// Nack without requeue. The event is lost by design; operators
			// watch the logs.
			msg.Term()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("consume failed: %w", err)
	}

	return cc, nil
}

// InitializeStreams creates the JetStream streams if they don't exist.
func (c *Client) InitializeStreams(ctx context.Context) error {
	// Events stream: raw + enriched share the subject space.
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamEvents,
		Description: "Kestrel endpoint telemetry (raw and enriched)",
		Subjects:    []string{"events.>"},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		MaxAge:      24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create events stream: %w", err)
	}

	// Alerts stream: kept around for history and manual reprocessing.
	_, err = c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamAlerts,
		Description: "Kestrel analytics alerts",
		Subjects:    []string{"alerts.>"},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create alerts stream: %w", err)
	}

	return nil
}
