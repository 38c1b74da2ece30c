package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestRecordPublisher_TrainingRecord(t *testing.T) {
	w := &mockWriter{}
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil).Once()

	p := newRecordPublisherWithWriter(w, zap.NewNop())
	rec := &domain.TrainingRecord{ID: uuid.New(), Department: "Billing", Category: "Refund", CSAT: 4}
	require.NoError(t, p.AppendTrainingRecord(context.Background(), rec))

	w.AssertExpectations(t)
	require.Len(t, sent, 1)
	assert.Equal(t, "billing/refund", string(sent[0].Key))
	assert.Equal(t, []kafka.Header{{Key: "record_type", Value: []byte(RecordTraining)}}, sent[0].Headers)

	var decoded domain.TrainingRecord
	require.NoError(t, json.Unmarshal(sent[0].Value, &decoded))
	assert.Equal(t, rec.ID, decoded.ID)
	assert.Equal(t, 4.0, decoded.CSAT)
}

func TestRecordPublisher_KeysAndErrors(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && string(msgs[0].Key) == "a1"
	})).Return(nil).Once()
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && string(msgs[0].Key) == "support/"
	})).Return(errors.New("broker unavailable")).Once()
	w.On("Close").Return(nil).Once()

	p := newRecordPublisherWithWriter(w, zap.NewNop())
	ctx := context.Background()

	assert.NoError(t, p.AppendAgentBehavior(ctx, &domain.AgentBehavior{AgentID: "a1", Action: "lookup"}))
	assert.EqualError(t, p.AppendEscalationPattern(ctx, &domain.EscalationPattern{Department: "Support", Trigger: "lawyer"}), "broker unavailable")
	assert.NoError(t, p.Close())
	w.AssertExpectations(t)
}
