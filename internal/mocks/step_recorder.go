package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/taskexport/internal/domain"
)

// MockStepRecorder implements task.StepRecorder for testing
type MockStepRecorder struct {
	// RecordStepFn allows test cases to mock the RecordStep behavior
	RecordStepFn func(ctx context.Context, playgroundID string, result domain.StepResult) error

	mu      sync.Mutex
	results []domain.StepResult
}

// RecordStep implements the task.StepRecorder interface
func (m *MockStepRecorder) RecordStep(ctx context.Context, playgroundID string, result domain.StepResult) error {
	m.mu.Lock()
	m.results = append(m.results, result)
	m.mu.Unlock()

	if m.RecordStepFn != nil {
		return m.RecordStepFn(ctx, playgroundID, result)
	}
	return nil
}

// Results returns every recorded result in call order
func (m *MockStepRecorder) Results() []domain.StepResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StepResult(nil), m.results...)
}
