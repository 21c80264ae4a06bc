package task

import (
	"context"
	"sync"

	"github.com/phrazzld/taskexport/internal/domain"
)

// Future is a handle to a StepResult that is being computed. It resolves
// exactly once.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result domain.StepResult
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve stores r and wakes waiters. Calls after the first are ignored.
func (f *Future) resolve(r domain.StepResult) bool {
	resolved := false
	f.once.Do(func() {
		f.result = r
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done returns a channel closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the attempt finishes and returns its StepResult.
func (f *Future) Result() domain.StepResult {
	<-f.done
	return f.result
}

// Wait blocks until the attempt finishes or ctx ends. Abandoning the wait
// does not stop the attempt.
func (f *Future) Wait(ctx context.Context) (domain.StepResult, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return domain.StepResult{}, ctx.Err()
	}
}
