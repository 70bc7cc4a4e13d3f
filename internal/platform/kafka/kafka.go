// Package kafka wraps a franz-go client for the two publishing paths:
// fire-and-forget records that must never block the caller, and
// acknowledged records for the outbox relay.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"truconn/internal/platform/config"
)

// Producer publishes records to Kafka.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
	onDrop func(topic string)
}

type Option func(*Producer)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// WithDropHook is called for every record the client refused or failed to deliver.
func WithDropHook(fn func(topic string)) Option {
	return func(p *Producer) {
		p.onDrop = fn
	}
}

// New connects to the configured brokers and pings one of them.
func New(ctx context.Context, cfg config.Kafka, opts ...Option) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID("truconn"),
		kgo.MaxBufferedRecords(10_000),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	p := &Producer{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopics creates the topics if they are missing.
func (p *Producer) EnsureTopics(ctx context.Context, partitions int32, topics ...string) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, -1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// PublishAsync buffers the record and returns immediately. When the client
// buffer is full the record is dropped and logged rather than blocking.
func (p *Producer) PublishAsync(ctx context.Context, topic string, key, value []byte) {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	p.client.TryProduce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		p.logger.WarnContext(ctx, "kafka publish failed",
			"topic", r.Topic,
			"error", err,
		)
		if p.onDrop != nil {
			p.onDrop(r.Topic)
		}
	})
}

// PublishSync waits for broker acknowledgement of every record.
func (p *Producer) PublishSync(ctx context.Context, records ...*kgo.Record) error {
	if len(records) == 0 {
		return nil
	}
	return p.client.ProduceSync(ctx, records...).FirstErr()
}

// Health pings the cluster.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
