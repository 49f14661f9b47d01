package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"DexLedger/internal/event"
	"DexLedger/internal/observability"
)

// StreamName is the JetStream stream that holds outbound ledger events.
const StreamName = "DEX_LEDGER_EVENTS"

const subjectPrefix = "dex.ledger.events"

// OutboundEvent is the wire shape published to NATS for downstream consumers.
type OutboundEvent struct {
	Sequence  uint64      `json:"sequence"`
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
	StateHash []byte      `json:"state_hash"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher drains committed events from the publish channel and publishes
// them to JetStream. Publishing is best-effort: a failed publish is logged
// and dropped, downstream consumers can always re-read the event log.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan event.Envelope
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan event.Envelope, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		logger:    observability.NewLogger("publish"),
	}
}

// Run starts the outbound publisher loop. Returns when ctx is cancelled or
// the input channel is closed.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-p.inputChan:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, env); err != nil {
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
				p.logger.Warn().
					Uint64("sequence", env.Sequence).
					Err(err).
					Msg("outbound publish failed")
				continue
			}
			if p.metrics != nil {
				p.metrics.PublishedEvents.Inc()
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env event.Envelope) error {
	out := OutboundEvent{
		Sequence:  env.Sequence,
		EventType: strings.ToLower(env.Type.String()),
		Payload:   env.Event,
		StateHash: env.StateHash[:],
		Timestamp: env.Timestamp,
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, out.EventType)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ".>"},
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

// Connect dials NATS with unbounded reconnects and returns a JetStream handle.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	logger := observability.NewLogger("nats")
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
