package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
	"github.com/turtacn/molregistry/internal/testutil"
	apperrors "github.com/turtacn/molregistry/pkg/errors"
)

type MockMessageProducer struct {
	mock.Mock
}

func (m *MockMessageProducer) Publish(ctx context.Context, msg *Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestEventPublisher_Envelope(t *testing.T) {
	prod := new(MockMessageProducer)
	var captured *Message
	prod.On("Publish", mock.Anything, mock.AnythingOfType("*kafka.Message")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*Message) }).
		Return(nil)

	pub := NewEventPublisher(prod, "", "molregistry-test", BreakerConfig{}, testutil.NewMockLogger())
	err := pub.Publish(context.Background(), domainMol.MoleculeCreatedEvent{Identifier: "ethanol", SMILES: "CCO"})
	require.NoError(t, err)
	prod.AssertExpectations(t)

	require.NotNil(t, captured)
	assert.Equal(t, DefaultTopic, captured.Topic)
	assert.Equal(t, "ethanol", string(captured.Key))
	assert.Equal(t, "molecule.created", captured.Headers["event_type"])

	env, err := DecodeEnvelope(captured.Value)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "molecule.created", env.EventType)
	assert.Equal(t, "molregistry-test", env.Source)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Empty(t, env.TraceID)

	var payload domainMol.MoleculeCreatedEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "CCO", payload.SMILES)
}

func TestNewEnvelope_TraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	env, err := NewEnvelope(ctx, "src", domainMol.BatchLoadedEvent{Identifiers: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, span.SpanContext().TraceID().String(), env.TraceID)
}

func TestEventPublisher_BreakerOpens(t *testing.T) {
	prod := new(MockMessageProducer)
	prod.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	logger := testutil.NewMockLogger()
	pub := NewEventPublisher(prod, "t", "src", BreakerConfig{ConsecutiveFailures: 2}, logger)
	ev := domainMol.MoleculeDeletedEvent{Identifier: "x", SMILES: "C"}

	for i := 0; i < 2; i++ {
		err := pub.Publish(context.Background(), ev)
		require.Error(t, err)
		assert.False(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
	}
	assert.Equal(t, "open", pub.State())
	assert.True(t, logger.HasMessage("warn", "event publisher breaker state changed"))

	err := pub.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
	prod.AssertNumberOfCalls(t, "Publish", 2)
}
