package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
	ErrConsumerClosed = errors.New(errors.ErrCodeInternal, "consumer closed")
)

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`

	// GroupID enables committed offsets.  Without it the reader starts at
	// StartOffset on every run.
	GroupID        string        `mapstructure:"group_id" yaml:"group_id"`
	StartOffset    string        `mapstructure:"start_offset" yaml:"start_offset"`
	MinBytes       int           `mapstructure:"min_bytes" yaml:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes" yaml:"max_bytes"`
	MaxWait        time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	CommitInterval time.Duration `mapstructure:"commit_interval" yaml:"commit_interval"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// EnvelopeHandler processes one decoded event.
type EnvelopeHandler func(ctx context.Context, env *EventEnvelope) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// Consumer streams registry change events.
type Consumer struct {
	reader  ReaderInterface
	config  ConsumerConfig
	logger  logging.Logger
	running atomic.Bool
	closed  atomic.Bool

	processed atomic.Int64
	failed    atomic.Int64
	malformed atomic.Int64
}

// NewConsumer creates a Consumer for cfg.Topic.
func NewConsumer(cfg ConsumerConfig, logger logging.Logger) (*Consumer, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	applyConsumerDefaults(&cfg)

	startOffset := kafka.LastOffset
	if cfg.StartOffset == "earliest" {
		startOffset = kafka.FirstOffset
	}
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: startOffset,
		Dialer:      &kafka.Dialer{Timeout: 10 * time.Second},
	}
	if cfg.GroupID != "" {
		rc.GroupTopics = []string{cfg.Topic}
		rc.CommitInterval = cfg.CommitInterval
	} else {
		rc.Topic = cfg.Topic
	}

	return newConsumer(kafka.NewReader(rc), cfg, logger), nil
}

func newConsumer(reader ReaderInterface, cfg ConsumerConfig, logger logging.Logger) *Consumer {
	return &Consumer{reader: reader, config: cfg, logger: logger}
}

func applyConsumerDefaults(cfg *ConsumerConfig) {
	if cfg.StartOffset == "" {
		cfg.StartOffset = "latest"
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
}

// Run fetches messages and passes decoded envelopes to handler until ctx is
// done.  Malformed messages are logged and committed so they do not block
// the stream.
func (c *Consumer) Run(ctx context.Context, handler EnvelopeHandler) error {
	if c.closed.Load() {
		return ErrConsumerClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeExternalService, "fetch failed")
		}

		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			c.malformed.Add(1)
			c.logger.Warn("skipping malformed event",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err))
		} else if err := c.handle(ctx, env, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.failed.Add(1)
			c.logger.Error("event handler failed",
				logging.String("event_id", env.EventID),
				logging.Int64("offset", msg.Offset),
				logging.Err(err))
		} else {
			c.processed.Add(1)
		}

		if c.config.GroupID != "" {
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Warn("commit failed", logging.Int64("offset", msg.Offset), logging.Err(err))
			}
		}
	}
}

// handle invokes handler with exponential backoff between attempts.
func (c *Consumer) handle(ctx context.Context, env *EventEnvelope, handler EnvelopeHandler) error {
	backoff := c.config.RetryBackoff
	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = handler(ctx, env); err == nil {
			return nil
		}
	}
	return err
}

// Metrics returns processed, failed and malformed counts.
func (c *Consumer) Metrics() (processed, failed, malformed int64) {
	return c.processed.Load(), c.failed.Load(), c.malformed.Load()
}

// Close closes the reader.
func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.reader.Close()
}

// ValidateConsumerConfig validates configuration.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.StartOffset != "" && cfg.StartOffset != "earliest" && cfg.StartOffset != "latest" {
		return errors.New(errors.ErrCodeValidation, "start_offset must be earliest or latest")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max_retries must be >= 0")
	}
	return nil
}
