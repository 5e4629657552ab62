package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/errors"
)

// BreakerConfig tunes the circuit breaker in front of the producer.
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests" yaml:"max_requests"`
	Interval            time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" yaml:"consecutive_failures"`
}

// MessageProducer is the subset of Producer used by EventPublisher.
type MessageProducer interface {
	Publish(ctx context.Context, msg *Message) error
}

// EventPublisher sends registry change events through a circuit breaker so a
// down broker costs one fast failure per mutation instead of a full timeout.
type EventPublisher struct {
	producer MessageProducer
	breaker  *gobreaker.CircuitBreaker
	topic    string
	source   string
	logger   logging.Logger
}

// NewEventPublisher creates an EventPublisher writing to topic.
func NewEventPublisher(producer MessageProducer, topic, source string, cfg BreakerConfig, logger logging.Logger) *EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	threshold := cfg.ConsecutiveFailures

	p := &EventPublisher{
		producer: producer,
		topic:    topic,
		source:   source,
		logger:   logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-events",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event publisher breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	})
	return p
}

// Publish implements the application EventPublisher port.
func (p *EventPublisher) Publish(ctx context.Context, event domainMol.DomainEvent) error {
	env, err := NewEnvelope(ctx, p.source, event)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode event")
	}
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode envelope")
	}
	msg := &Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   map[string]string{headerEventType: env.EventType},
		Timestamp: env.Timestamp,
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.producer.Publish(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "event transport unavailable")
	}
	return err
}

// State reports the breaker state for readiness checks.
func (p *EventPublisher) State() string {
	return p.breaker.State().String()
}
