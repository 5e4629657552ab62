package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/molregistry/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
)

type eventsOptions struct {
	brokers       []string
	topic         string
	groupID       string
	fromBeginning bool
	types         []string
	count         int
}

// eventOutput flattens an envelope with its decoded payload.
type eventOutput struct {
	kafka.EventEnvelope `yaml:",inline"`
	Body                map[string]interface{} `json:"-" yaml:"payload"`
}

func (e eventOutput) String() string {
	return fmt.Sprintf("%s  %-22s  %s", e.Timestamp.UTC().Format(time.RFC3339), e.EventType, string(e.Payload))
}

func newEventsCmd() *cobra.Command {
	opts := &eventsOptions{}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream registry change events from kafka",
		Long: "events tails the registry's change-event topic and prints each envelope.\n" +
			"Without --group the stream starts at the latest offset (or the earliest with\n" +
			"--from-beginning) and nothing is committed.",
		Example: `  molctl events --brokers kafka:9092
  molctl events --type molecule.created --type molecule.deleted -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.brokers, "brokers", []string{"localhost:9092"}, "kafka bootstrap brokers")
	f.StringVar(&opts.topic, "topic", kafka.DefaultTopic, "event topic")
	f.StringVar(&opts.groupID, "group", "", "consumer group; enables committed offsets")
	f.BoolVar(&opts.fromBeginning, "from-beginning", false, "start from the earliest retained event")
	f.StringSliceVar(&opts.types, "type", nil, "only print these event types (repeatable)")
	f.IntVar(&opts.count, "count", 0, "exit after printing this many events (0 streams until interrupted)")
	return cmd
}

func runEvents(cmd *cobra.Command, opts *eventsOptions) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if opts.count < 0 {
		return fmt.Errorf("count must not be negative, got %d", opts.count)
	}

	start := "latest"
	if opts.fromBeginning {
		start = "earliest"
	}
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     opts.brokers,
		Topic:       opts.topic,
		GroupID:     opts.groupID,
		StartOffset: start,
	}, cc.Logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cc.Logger.Info("streaming registry events",
		logging.Strings("brokers", opts.brokers),
		logging.String("topic", opts.topic),
	)
	return consumer.Run(ctx, eventPrinter(cmd, opts.types, opts.count, cancel))
}

// eventPrinter prints envelopes whose type is in types, or all of them when
// types is empty.  After limit printed events it calls done.
func eventPrinter(cmd *cobra.Command, types []string, limit int, done func()) kafka.EnvelopeHandler {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	printed := 0
	return func(_ context.Context, env *kafka.EventEnvelope) error {
		if len(allowed) > 0 && !allowed[env.EventType] {
			return nil
		}
		out := eventOutput{EventEnvelope: *env}
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &out.Body); err != nil {
				return err
			}
		}
		if err := PrintResult(cmd, out); err != nil {
			return err
		}
		printed++
		if limit > 0 && printed >= limit {
			done()
		}
		return nil
	}
}
