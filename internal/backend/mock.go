package backend

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
)

// MockBackend is a configurable backend for testing.
// Set the response fields to control what each method returns.
type MockBackend struct {
	PredictResponse    domain.Prediction
	PredictError       error
	PredictDelay       time.Duration
	LoadError          error
	TestConnectionErr  error
	TrainError         error
	TrainDelay         time.Duration
	TrainAccuracy      float64
	TrainValueIncrease float64

	mu sync.Mutex
	// Call tracking for assertions
	PredictCalls        []domain.PredictionInput
	TrainCalls          [][]domain.TrainingExample
	TestConnectionCalls int
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		PredictResponse: domain.Prediction{
			Label:      "mock",
			Value:      1,
			Confidence: 0.8,
		},
		TrainAccuracy:      0.9,
		TrainValueIncrease: 1,
	}
}

func (m *MockBackend) Load(ctx context.Context) error {
	return m.LoadError
}

func (m *MockBackend) TestConnection(ctx context.Context) error {
	m.mu.Lock()
	m.TestConnectionCalls++
	err := m.TestConnectionErr
	m.mu.Unlock()
	return err
}

func (m *MockBackend) SetTestConnectionErr(err error) {
	m.mu.Lock()
	m.TestConnectionErr = err
	m.mu.Unlock()
}

func (m *MockBackend) Predict(ctx context.Context, input domain.PredictionInput) (*domain.Prediction, error) {
	m.mu.Lock()
	m.PredictCalls = append(m.PredictCalls, input)
	delay, err, resp := m.PredictDelay, m.PredictError, m.PredictResponse
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	resp.Capability = input.Capability
	return &resp, nil
}

// Train returns a new mock whose predicted value is raised by
// TrainValueIncrease.
func (m *MockBackend) Train(ctx context.Context, examples []domain.TrainingExample, mode domain.TrainMode) (domain.ModelBackend, *domain.TrainReport, error) {
	m.mu.Lock()
	m.TrainCalls = append(m.TrainCalls, examples)
	delay, err := m.TrainDelay, m.TrainError
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, nil, err
	}

	next := NewMockBackend()
	next.PredictResponse = m.PredictResponse
	next.PredictResponse.Value += m.TrainValueIncrease
	next.PredictDelay = m.PredictDelay
	next.TrainDelay = m.TrainDelay
	next.TrainAccuracy = m.TrainAccuracy
	next.TrainValueIncrease = m.TrainValueIncrease
	return next, &domain.TrainReport{
		Examples: len(examples),
		Accuracy: m.TrainAccuracy,
		F1:       m.TrainAccuracy,
	}, nil
}

// PredictCallCount returns the number of Predict calls so far.
func (m *MockBackend) PredictCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PredictCalls)
}
