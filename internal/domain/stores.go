package domain

import (
	"context"
	"time"
)

// RecordSink receives every record the learning engine appends. Sinks are
// write-through copies for the host's persistence; the engine never reads
// from them.
type RecordSink interface {
	AppendTrainingRecord(ctx context.Context, r *TrainingRecord) error
	AppendAgentBehavior(ctx context.Context, b *AgentBehavior) error
	AppendEscalationPattern(ctx context.Context, p *EscalationPattern) error
}

// TrainingRecordStore is the read side offered by durable sinks.
type TrainingRecordStore interface {
	RecordSink
	ListByPattern(ctx context.Context, department, category string, limit int) ([]TrainingRecord, error)
	ListByDepartment(ctx context.Context, department string, since time.Time) ([]TrainingRecord, error)
}
