package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/atelier-studio/admin-service/internal/domain"
)

// Producer publishes admin audit events. Fire-and-forget: produce failures
// are logged and never affect the operation being audited.
type Producer struct {
	client *kgo.Client
	topic  string
}

// New creates a Producer for the given brokers and audit topic.
func New(brokers []string, topic string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1 << 20),
	)
	if err != nil {
		return nil, err
	}
	return &Producer{client: client, topic: topic}, nil
}

// Close flushes pending records and releases the client.
func (p *Producer) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		log.Error().Err(err).Msg("kafka flush on close failed")
	}
	p.client.Close()
}

// EventEnvelope is the common wrapper used by all studio services for Kafka
// messages.
type EventEnvelope struct {
	EventType string          `json:"eventType"`
	EventID   string          `json:"eventId"`
	EmittedAt time.Time       `json:"emittedAt"`
	Payload   json.RawMessage `json:"payload"`
}

// CleanupCompleted publishes the outcome of a cleanup run to the audit topic.
// Satisfies application.AuditPublisher.
func (p *Producer) CleanupCompleted(ctx context.Context, run domain.CleanupRun) {
	payload, err := json.Marshal(run)
	if err != nil {
		log.Error().Err(err).Msg("marshal cleanup run payload")
		return
	}
	value, err := json.Marshal(EventEnvelope{
		EventType: "CLEANUP_COMPLETED",
		EventID:   uuid.NewString(),
		EmittedAt: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		log.Error().Err(err).Msg("marshal audit envelope")
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(run.ID.String()),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			log.Error().Err(err).Str("topic", p.topic).Msg("audit event produce failed")
		}
	})
}

// NopPublisher discards audit events. Used when Kafka is disabled in config
// and by tests.
type NopPublisher struct{}

func (NopPublisher) CleanupCompleted(context.Context, domain.CleanupRun) {}
