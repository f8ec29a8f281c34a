package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solswap/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing trade events to NATS.
type Publisher interface {
	// PublishTrade publishes a single trade event to JetStream.
	// The event is published to the subject "trades.{wallet_address}".
	PublishTrade(ctx context.Context, event *TradeEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes trade events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for trades.
	StreamName = "TRADES"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "trades.*"

	// SubjectPrefix is prepended to the wallet address to form a subject.
	SubjectPrefix = "trades."

	// StreamRetention is how long messages are retained.
	StreamRetention = 30 * 24 * time.Hour
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists. m may be nil.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("solswap-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Debug("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Swap trades submitted by solswap",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishTrade publishes a single trade event.
func (p *JetStreamPublisher) PublishTrade(ctx context.Context, event *TradeEvent) error {
	subject := event.Subject()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trade event: %w", err)
	}

	_, err = p.js.Publish(ctx, subject, data)
	p.record(err)
	if err != nil {
		return fmt.Errorf("failed to publish trade: %w", err)
	}

	p.logger.DebugContext(ctx, "published trade event",
		"subject", subject,
		"signature", event.Signature,
		"status", event.Status,
	)
	return nil
}

func (p *JetStreamPublisher) record(err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordNATSPublish(StreamSubjects, status)
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
