package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molregistry/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
)

func newOutputCmd(format string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.WithValue(context.Background(), cliContextKey{}, &CLIContext{
		Logger:       logging.NewNopLogger(),
		OutputFormat: format,
		Timeout:      time.Second,
	}))
	return cmd, &out
}

func testEnvelope(eventType, payload string) *kafka.EventEnvelope {
	return &kafka.EventEnvelope{
		EventID:       "evt-1",
		EventType:     eventType,
		Source:        "molregistry",
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SchemaVersion: kafka.SchemaVersion,
		Payload:       json.RawMessage(payload),
	}
}

func TestEventPrinter_Text(t *testing.T) {
	cmd, out := newOutputCmd(OutputText)
	h := eventPrinter(cmd, nil, 0, func() { t.Fatal("done called without a limit") })

	require.NoError(t, h(context.Background(), testEnvelope("molecule.created", `{"identifier":"ethanol","smiles":"CCO"}`)))
	assert.Equal(t, "2026-01-02T03:04:05Z  molecule.created        {\"identifier\":\"ethanol\",\"smiles\":\"CCO\"}\n", out.String())
}

func TestEventPrinter_FilterAndLimit(t *testing.T) {
	cmd, out := newOutputCmd(OutputJSON)
	done := 0
	h := eventPrinter(cmd, []string{"molecule.deleted"}, 1, func() { done++ })

	require.NoError(t, h(context.Background(), testEnvelope("molecule.created", `{"identifier":"a"}`)))
	assert.Empty(t, out.String())
	assert.Zero(t, done)

	require.NoError(t, h(context.Background(), testEnvelope("molecule.deleted", `{"identifier":"a","smiles":"C"}`)))
	assert.Equal(t, 1, done)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "molecule.deleted", decoded["event_type"])
	assert.Equal(t, "evt-1", decoded["event_id"])
	assert.Equal(t, map[string]interface{}{"identifier": "a", "smiles": "C"}, decoded["payload"])
}

func TestEventPrinter_YAMLIncludesPayload(t *testing.T) {
	cmd, out := newOutputCmd(OutputYAML)
	h := eventPrinter(cmd, nil, 0, func() {})

	require.NoError(t, h(context.Background(), testEnvelope("molecule.batch_loaded", `{"identifiers":["a","b"],"skipped":1}`)))
	assert.Contains(t, out.String(), "event_type: molecule.batch_loaded")
	assert.Contains(t, out.String(), "payload:")
	assert.Contains(t, out.String(), "skipped: 1")
}

func TestEventPrinter_BadPayload(t *testing.T) {
	cmd, _ := newOutputCmd(OutputText)
	h := eventPrinter(cmd, nil, 0, func() {})
	assert.Error(t, h(context.Background(), testEnvelope("molecule.created", `[1,2]`)))
}

func TestEventsCmd_Flags(t *testing.T) {
	cmd := newEventsCmd()
	f := cmd.Flags()
	assert.Equal(t, kafka.DefaultTopic, f.Lookup("topic").DefValue)
	assert.Equal(t, "[localhost:9092]", f.Lookup("brokers").DefValue)
	assert.Equal(t, "false", f.Lookup("from-beginning").DefValue)
}

func TestEventsCmd_NegativeCount(t *testing.T) {
	res := runCLI(t, "http://localhost:1", "", "events", "--count", "-1")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "count must not be negative")
}
