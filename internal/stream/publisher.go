// Package stream publishes committed market events to NATS JetStream
// for downstream consumers. Publishing is best-effort: the event log in
// Postgres is the durable record, so a failed publish is logged and
// counted, never retried at the cost of stalling the market.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"CurveBank/internal/event"
	"CurveBank/internal/observability"
)

const streamName = "CURVEBANK_EVENTS"

// PublishedEvent is the outbound wire format. Amounts inside the
// payload are decimal strings.
type PublishedEvent struct {
	Sequence  int64  `json:"sequence"`
	Instance  string `json:"instance"`
	EventType string `json:"event_type"`
	Timestamp int64  `json:"timestamp"` // epoch microseconds
	Payload   any    `json:"payload"`
	StateHash []byte `json:"state_hash"`
	PrevHash  []byte `json:"prev_hash"`
}

// Publisher drains the publish channel onto JetStream subjects of the
// form curvebank.events.{event_type}.{instance}.
type Publisher struct {
	js      jetstream.JetStream
	input   <-chan *event.Envelope
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewPublisher(
	js jetstream.JetStream,
	input <-chan *event.Envelope,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Publisher {
	return &Publisher{js: js, input: input, metrics: metrics, log: logger}
}

// Run publishes until ctx is cancelled or the input channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-p.input:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, env); err != nil {
				p.metrics.StreamPublishErrors.Inc()
				p.log.Warn().
					Err(err).
					Str("instance", env.Instance).
					Int64("sequence", env.Sequence).
					Msg("outbound publish failed")
				continue
			}
			p.metrics.StreamPublished.WithLabelValues(env.Type.String()).Inc()
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env *event.Envelope) error {
	data, err := json.Marshal(PublishedEvent{
		Sequence:  env.Sequence,
		Instance:  env.Instance,
		EventType: env.Type.String(),
		Timestamp: env.Timestamp,
		Payload:   env.Payload,
		StateHash: env.StateHash[:],
		PrevHash:  env.PrevHash[:],
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("curvebank.events.%s.%s", env.Type, env.Instance)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates the outbound events stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"curvebank.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream
// context. Reconnects indefinitely.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
