package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
)

const (
	// SchemaVersion is stamped on every envelope.
	SchemaVersion = "1.0"
	// DefaultTopic receives registry change events.
	DefaultTopic = "molregistry.molecule.events"

	headerEventType = "event_type"
)

// EventEnvelope wraps a domain event for the wire.
type EventEnvelope struct {
	EventID       string          `json:"event_id" yaml:"event_id"`
	EventType     string          `json:"event_type" yaml:"event_type"`
	Source        string          `json:"source" yaml:"source"`
	Timestamp     time.Time       `json:"timestamp" yaml:"timestamp"`
	SchemaVersion string          `json:"schema_version" yaml:"schema_version"`
	TraceID       string          `json:"trace_id,omitempty" yaml:"trace_id,omitempty"`
	Payload       json.RawMessage `json:"payload" yaml:"-"`
}

// NewEnvelope marshals event into an envelope.  The trace id is taken from
// the span in ctx when one is recording.
func NewEnvelope(ctx context.Context, source string, event domainMol.DomainEvent) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	env := &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     event.EventType(),
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return env, nil
}

// DecodeEnvelope parses a message value.
func DecodeEnvelope(data []byte) (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
