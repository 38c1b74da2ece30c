package store

import (
	"context"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables behind TrainingStore. Every statement is
// idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS training_records (
	id UUID PRIMARY KEY,
	ticket_id TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL,
	category TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT '',
	agent_id TEXT NOT NULL DEFAULT '',
	resolution_time_minutes DOUBLE PRECISION NOT NULL,
	csat DOUBLE PRECISION NOT NULL,
	escalated BOOLEAN NOT NULL DEFAULT FALSE,
	reopened BOOLEAN NOT NULL DEFAULT FALSE,
	solution_summary TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS training_records_pattern_idx
	ON training_records (lower(department), lower(category), recorded_at DESC);

CREATE TABLE IF NOT EXISTS agent_behaviors (
	id UUID PRIMARY KEY,
	agent_id TEXT NOT NULL,
	department TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	successful BOOLEAN NOT NULL,
	response_time_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
	csat DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS escalation_patterns (
	id UUID PRIMARY KEY,
	department TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	trigger TEXT NOT NULL,
	customer_tier TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
);
`

// TrainingStore is the Postgres write-through sink for learning records.
type TrainingStore struct {
	db *pgxpool.Pool
}

func NewTrainingStore(db *pgxpool.Pool) *TrainingStore {
	return &TrainingStore{db: db}
}

func (s *TrainingStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

func (s *TrainingStore) AppendTrainingRecord(ctx context.Context, r *domain.TrainingRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO training_records (id, ticket_id, department, category, priority, agent_id, resolution_time_minutes, csat, escalated, reopened, solution_summary, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.TicketID, r.Department, r.Category, r.Priority, r.AgentID, r.ResolutionTimeMinutes, r.CSAT, r.Escalated, r.Reopened, r.SolutionSummary, r.Timestamp,
	)
	return err
}

func (s *TrainingStore) AppendAgentBehavior(ctx context.Context, b *domain.AgentBehavior) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO agent_behaviors (id, agent_id, department, category, action, successful, response_time_minutes, csat, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		b.ID, b.AgentID, b.Department, b.Category, b.Action, b.Successful, b.ResponseTimeMinutes, b.CSAT, b.Timestamp,
	)
	return err
}

func (s *TrainingStore) AppendEscalationPattern(ctx context.Context, p *domain.EscalationPattern) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO escalation_patterns (id, department, category, trigger, customer_tier, reason, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Department, p.Category, p.Trigger, p.CustomerTier, p.Reason, p.Timestamp,
	)
	return err
}

const trainingRecordColumns = `id, ticket_id, department, category, priority, agent_id, resolution_time_minutes, csat, escalated, reopened, solution_summary, recorded_at`

// ListByPattern returns the newest records for a department and category.
func (s *TrainingStore) ListByPattern(ctx context.Context, department, category string, limit int) ([]domain.TrainingRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryRecords(ctx,
		`SELECT `+trainingRecordColumns+`
		 FROM training_records
		 WHERE lower(department) = lower($1) AND lower(category) = lower($2)
		 ORDER BY recorded_at DESC
		 LIMIT $3`,
		department, category, limit,
	)
}

// ListByDepartment returns a department's records since a point in time,
// oldest first.
func (s *TrainingStore) ListByDepartment(ctx context.Context, department string, since time.Time) ([]domain.TrainingRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+trainingRecordColumns+`
		 FROM training_records
		 WHERE lower(department) = lower($1) AND recorded_at >= $2
		 ORDER BY recorded_at ASC`,
		department, since,
	)
}

func (s *TrainingStore) queryRecords(ctx context.Context, sql string, args ...any) ([]domain.TrainingRecord, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TrainingRecord
	for rows.Next() {
		var r domain.TrainingRecord
		if err := rows.Scan(&r.ID, &r.TicketID, &r.Department, &r.Category, &r.Priority, &r.AgentID, &r.ResolutionTimeMinutes, &r.CSAT, &r.Escalated, &r.Reopened, &r.SolutionSummary, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

var _ domain.TrainingRecordStore = (*TrainingStore)(nil)
