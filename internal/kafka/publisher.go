package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Record types carried in the record_type header.
const (
	RecordTraining   = "training_record"
	RecordBehavior   = "agent_behavior"
	RecordEscalation = "escalation_pattern"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordPublisher publishes every learning record to a Kafka topic.
type RecordPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewRecordPublisher creates a publisher writing to topic on brokers.
func NewRecordPublisher(brokers []string, topic string, logger *zap.Logger) *RecordPublisher {
	return &RecordPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

func newRecordPublisherWithWriter(w messageWriter, logger *zap.Logger) *RecordPublisher {
	return &RecordPublisher{writer: w, logger: logger}
}

// AppendTrainingRecord publishes keyed by department/category so one
// pattern's records stay ordered on a partition.
func (p *RecordPublisher) AppendTrainingRecord(ctx context.Context, r *domain.TrainingRecord) error {
	return p.publish(ctx, RecordTraining, r.PatternKey(), r)
}

func (p *RecordPublisher) AppendAgentBehavior(ctx context.Context, b *domain.AgentBehavior) error {
	return p.publish(ctx, RecordBehavior, b.AgentID, b)
}

func (p *RecordPublisher) AppendEscalationPattern(ctx context.Context, e *domain.EscalationPattern) error {
	return p.publish(ctx, RecordEscalation, domain.PatternKey(e.Department, e.Category), e)
}

func (p *RecordPublisher) publish(ctx context.Context, recordType, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: []kafka.Header{{Key: "record_type", Value: []byte(recordType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	p.logger.Debug("published record", zap.String("record_type", recordType), zap.String("key", key))
	return nil
}

func (p *RecordPublisher) Close() error {
	return p.writer.Close()
}

var _ domain.RecordSink = (*RecordPublisher)(nil)
