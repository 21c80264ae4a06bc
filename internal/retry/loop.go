package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/platform/logger"
)

// AttemptFunc runs one attempt of a task. attempt is zero for the first
// attempt and increments for each retry.
type AttemptFunc func(ctx context.Context, attempt int) domain.StepResult

// Outcome summarises a Run.
type Outcome struct {
	// Result is the StepResult of the last attempt.
	Result domain.StepResult
	// Attempts is the number of attempts made, at least one.
	Attempts int
}

var errPermanent = errors.New("permanent failure")

// Run invokes fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent, waiting DelayForAttempt between attempts. A failure
// is retried only when the result is flagged retryable and its error detail
// also classifies as retryable. Cancelling ctx stops the loop between
// attempts; an attempt already running is never interrupted by Run itself.
// The returned error is non-nil only when ctx ended the loop early.
func (p *Policy) Run(ctx context.Context, fn AttemptFunc) (Outcome, error) {
	log := logger.FromContext(ctx)

	var (
		out     Outcome
		retries atomic.Int64
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		n := int(retries.Load())
		if n >= p.cfg.MaxRetries {
			return 0, true
		}
		retries.Add(1)
		return p.DelayForAttempt(n), false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt := out.Attempts
		out.Result = fn(ctx, attempt)
		out.Attempts++

		result := out.Result
		if result.State().Succeeded() {
			return nil
		}

		verdict := p.Classify(result.ErrorDetail())
		log.Warn("attempt failed",
			"task_id", result.TaskID(),
			"step_id", result.StepID(),
			"attempt", attempt,
			"classification", verdict.Kind.String(),
			"keyword", verdict.Keyword,
			"retryable", result.Retryable(),
			"error", result.ErrorDetail())

		// Either the result's flag or the policy's verdict can veto a retry.
		if !result.Retryable() || !verdict.Retryable() {
			return errPermanent
		}
		return goretry.RetryableError(errors.New(result.ErrorDetail()))
	})

	if out.Attempts == 0 {
		return out, ctx.Err()
	}
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return out, err
	}
	return out, nil
}
