package backend

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tune the circuit breaker around a remote backend.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
	}
}

// Breaker guards a remote backend's predictions with a circuit breaker. An
// open circuit fails fast with gobreaker.ErrOpenState.
type Breaker struct {
	domain.ModelBackend
	cb *gobreaker.CircuitBreaker
}

func NewBreaker(modelID string, inner domain.ModelBackend, settings BreakerSettings, logger *zap.Logger) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "model:" + modelID,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= settings.ConsecutiveFailures {
				return true
			}
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Caller cancellation does not count as a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{ModelBackend: inner, cb: cb}
}

func (b *Breaker) Predict(ctx context.Context, input domain.PredictionInput) (*domain.Prediction, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.ModelBackend.Predict(ctx, input)
	})
	if err != nil {
		return nil, err
	}
	return out.(*domain.Prediction), nil
}

// State reports the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Open reports whether the breaker is rejecting calls.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}
