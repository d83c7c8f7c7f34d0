package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"insider-risk/internal/models"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

const (
	KindResult  = "scoring_result"
	KindSummary = "department_summary"
)

type Event struct {
	Kind      string                    `json:"kind"`
	SessionID string                    `json:"session_id"`
	Result    *models.ScoringResult     `json:"result,omitempty"`
	Summary   *models.DepartmentSummary `json:"summary,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

// Producer is the part of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type KafkaPublisher struct {
	client Producer
	topic  string
	logger *zap.Logger
}

func NewKafkaClient(brokers []string) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return cl, nil
}

func NewKafkaPublisher(client Producer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}
}

// PublishResults sends one record per result, keyed by entity id so all
// results for an entity land on the same partition.
func (p *KafkaPublisher) PublishResults(ctx context.Context, sessionID string, results []models.ScoringResult) error {
	if len(results) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]*kgo.Record, 0, len(results))
	for i := range results {
		rec, err := p.record(results[i].EntityID, Event{
			Kind:      KindResult,
			SessionID: sessionID,
			Result:    &results[i],
			Timestamp: now,
		})
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish %d results: %w", len(records), err)
	}
	p.logger.Debug("published scoring results",
		zap.String("session_id", sessionID),
		zap.Int("count", len(records)),
		zap.String("topic", p.topic),
	)
	return nil
}

func (p *KafkaPublisher) PublishSummary(ctx context.Context, sessionID string, summary models.DepartmentSummary) error {
	rec, err := p.record(summary.Department, Event{
		Kind:      KindSummary,
		SessionID: sessionID,
		Summary:   &summary,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish summary for %s: %w", summary.Department, err)
	}
	p.logger.Debug("published department summary",
		zap.String("session_id", sessionID),
		zap.String("department", summary.Department),
		zap.String("topic", p.topic),
	)
	return nil
}

func (p *KafkaPublisher) record(key string, ev Event) (*kgo.Record, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", ev.Kind, err)
	}
	return &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(key),
		Value:     data,
		Timestamp: ev.Timestamp,
	}, nil
}

// Nop drops everything; used when kafka is disabled.
type Nop struct{}

func (Nop) PublishResults(context.Context, string, []models.ScoringResult) error { return nil }

func (Nop) PublishSummary(context.Context, string, models.DepartmentSummary) error { return nil }
