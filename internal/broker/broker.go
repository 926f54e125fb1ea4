// Package broker is the topic pub/sub layer the agents talk over. The only
// transport compiled in is the stub: in-process fan-out plus a file-backed
// queue under the data directory, shared by every squire process on the host.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"squire/internal/config"
	"squire/internal/metrics"
	"squire/internal/queue"
)

// Message is one published payload.
type Message struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Topic, err)
	}
	return nil
}

// Handler processes a delivered message. Returned errors are logged by the
// worker pool; they do not cause redelivery.
type Handler func(ctx context.Context, msg Message) error

// Client publishes and subscribes on topics.
type Client interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, h Handler) error
	Close() error
}

// New returns the broker client for cfg. Handlers run on q; opts are applied
// after the defaults derived from cfg.
func New(cfg config.Config, q *queue.Queue, logger *zap.Logger, m *metrics.Metrics, opts ...StubOption) (Client, error) {
	if cfg.Solace.Host != "" {
		logger.Warn("no native Solace transport compiled in, using stub broker",
			zap.String("host", cfg.Solace.Host),
			zap.String("vpn", cfg.Solace.VPN),
			zap.Bool("credentials", cfg.SolaceConfigured()))
	}
	dir := cfg.DataDir
	opts = append([]StubOption{
		WithLogger(logger),
		WithMetrics(m),
		WithPollInterval(cfg.BrokerPollInterval()),
	}, opts...)
	stub, err := NewStub(dir, q, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("stub broker ready", zap.String("dir", dir))
	return stub, nil
}
