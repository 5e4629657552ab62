package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
	"github.com/turtacn/molregistry/internal/testutil"
)

// mockKafkaReader serves queued messages and then blocks until ctx is done.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	fetchErr  error
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if m.fetchErr != nil {
		err := m.fetchErr
		m.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.closed = true
	return nil
}

func (m *mockKafkaReader) Stats() kafka.ReaderStats {
	return kafka.ReaderStats{}
}

func (m *mockKafkaReader) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

func envelopeMessage(t *testing.T, offset int64, ev domainMol.DomainEvent) kafka.Message {
	t.Helper()
	env, err := NewEnvelope(context.Background(), "test", ev)
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Topic: DefaultTopic, Offset: offset, Value: b}
}

func newTestConsumer(r ReaderInterface, groupID string) *Consumer {
	cfg := ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: DefaultTopic, GroupID: groupID}
	applyConsumerDefaults(&cfg)
	cfg.RetryBackoff = time.Millisecond
	return newConsumer(r, cfg, testutil.NewMockLogger())
}

func TestValidateConsumerConfig(t *testing.T) {
	cfg := ConsumerConfig{Brokers: []string{"b:9092"}}
	assert.NoError(t, ValidateConsumerConfig(cfg))

	cfg.StartOffset = "middle"
	assert.Error(t, ValidateConsumerConfig(cfg))

	assert.Error(t, ValidateConsumerConfig(ConsumerConfig{}))
}

func TestConsumer_Run_DeliversAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		envelopeMessage(t, 1, domainMol.MoleculeCreatedEvent{Identifier: "a", SMILES: "C"}),
		{Topic: DefaultTopic, Offset: 2, Value: []byte("not json")},
		envelopeMessage(t, 3, domainMol.MoleculeDeletedEvent{Identifier: "a", SMILES: "C"}),
	}}
	c := newTestConsumer(reader, "watchers")

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var types []string
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(_ context.Context, env *EventEnvelope) error {
			mu.Lock()
			defer mu.Unlock()
			types = append(types, env.EventType)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return reader.commits() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, []string{"molecule.created", "molecule.deleted"}, types)
	mu.Unlock()

	processed, failed, malformed := c.Metrics()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(0), failed)
	assert.Equal(t, int64(1), malformed)
}

func TestConsumer_Run_NoGroupSkipsCommit(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		envelopeMessage(t, 1, domainMol.MoleculeCreatedEvent{Identifier: "a", SMILES: "C"}),
	}}
	c := newTestConsumer(reader, "")

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})
	go func() {
		_ = c.Run(ctx, func(context.Context, *EventEnvelope) error {
			close(handled)
			return nil
		})
	}()
	<-handled
	cancel()
	assert.Equal(t, 0, reader.commits())
}

func TestConsumer_Run_RetriesHandler(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		envelopeMessage(t, 1, domainMol.MoleculeCreatedEvent{Identifier: "a", SMILES: "C"}),
	}}
	c := newTestConsumer(reader, "g")
	c.config.MaxRetries = 2

	var mu sync.Mutex
	attempts := 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, *EventEnvelope) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
	processed, failed, _ := c.Metrics()
	assert.Equal(t, int64(1), processed)
	assert.Equal(t, int64(0), failed)
}

func TestConsumer_Run_FetchError(t *testing.T) {
	reader := &mockKafkaReader{fetchErr: errors.New("connection refused")}
	c := newTestConsumer(reader, "")

	err := c.Run(context.Background(), func(context.Context, *EventEnvelope) error { return nil })
	assert.Error(t, err)
}

func TestConsumer_Run_AlreadyRunningAndClosed(t *testing.T) {
	reader := &mockKafkaReader{}
	c := newTestConsumer(reader, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(context.Context, *EventEnvelope) error { return nil }) }()

	require.Eventually(t, func() bool { return c.running.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Run(ctx, nil), ErrAlreadyRunning)
	cancel()
	require.NoError(t, <-done)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
	assert.ErrorIs(t, c.Run(context.Background(), nil), ErrConsumerClosed)
}
