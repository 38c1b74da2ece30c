package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := NewMockBackend()
	inner.PredictError = errors.New("boom")

	settings := DefaultBreakerSettings()
	settings.ConsecutiveFailures = 3
	b := NewBreaker("ext", inner, settings, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Predict(ctx, domain.PredictionInput{})
		assert.EqualError(t, err, "boom")
	}
	assert.True(t, b.Open())

	_, err := b.Predict(ctx, domain.PredictionInput{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.PredictCallCount(), "open breaker does not reach the backend")
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	inner := NewMockBackend()
	inner.PredictError = errors.New("boom")

	settings := DefaultBreakerSettings()
	settings.ConsecutiveFailures = 1
	settings.Timeout = 10 * time.Millisecond
	settings.MaxRequests = 1
	b := NewBreaker("ext", inner, settings, zap.NewNop())
	ctx := context.Background()

	_, err := b.Predict(ctx, domain.PredictionInput{})
	require.Error(t, err)
	require.True(t, b.Open())

	time.Sleep(20 * time.Millisecond)
	inner.PredictError = nil

	pred, err := b.Predict(ctx, domain.PredictionInput{})
	require.NoError(t, err)
	assert.Equal(t, "mock", pred.Label)
	assert.Equal(t, gobreaker.StateClosed.String(), b.State())
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	inner := NewMockBackend()
	inner.PredictDelay = time.Second

	settings := DefaultBreakerSettings()
	settings.ConsecutiveFailures = 1
	b := NewBreaker("ext", inner, settings, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Predict(ctx, domain.PredictionInput{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, b.Open())
}

func TestNew_ProviderSelection(t *testing.T) {
	pool := NewMCPPool(zap.NewNop())

	b, err := New("rt", domain.BackendInHouse, domain.ModelConfig{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &AggregateModel{}, b)

	b, err = New("ext", domain.BackendExternal, domain.ModelConfig{Endpoint: "http://localhost:1"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HTTPBackend{}, b)

	b, err = New("oa", domain.BackendExternal, domain.ModelConfig{Provider: ProviderOpenAI, APIKey: "k"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIBackend{}, b)

	b, err = New("mcp", domain.BackendMCP, domain.ModelConfig{}, pool, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MCPBackend{}, b)

	_, err = New("oa", domain.BackendExternal, domain.ModelConfig{Provider: ProviderOpenAI}, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = New("ext", domain.BackendExternal, domain.ModelConfig{}, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = New("mcp", domain.BackendMCP, domain.ModelConfig{}, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = New("x", domain.BackendInHouse, domain.ModelConfig{Provider: ProviderOpenAI}, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = New("x", domain.BackendKind("quantum"), domain.ModelConfig{}, nil, zap.NewNop())
	assert.Error(t, err)
}
