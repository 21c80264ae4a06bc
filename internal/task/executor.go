package task

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/export"
	"github.com/phrazzld/taskexport/internal/platform/logger"
	"github.com/phrazzld/taskexport/internal/redact"
	"github.com/phrazzld/taskexport/internal/retry"
)

// ExecutorConfig holds configuration for the executor
type ExecutorConfig struct {
	// ExportDir is the directory holding attempt-scoped local sinks.
	ExportDir string

	// KeyPrefix is the first segment of every object key.
	KeyPrefix string

	// FetchSize bounds how many rows the driver buffers per round trip.
	FetchSize int

	// MaxConcurrent limits how many attempts run at once. Zero means no
	// limit beyond the connection pool's own.
	MaxConcurrent int
}

// DefaultExecutorConfig returns an ExecutorConfig with reasonable defaults
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		ExportDir: filepath.Join(os.TempDir(), "exportd"),
		KeyPrefix: "exports",
		FetchSize: 1000,
	}
}

// Executor runs single attempts of export tasks. It is safe for concurrent
// use; attempts share nothing but the connection provider.
type Executor struct {
	conns     ConnectionProvider
	publisher Publisher
	recorder  StepRecorder
	exporter  *export.Exporter
	policy    *retry.Policy
	fs        afero.Fs
	sem       *semaphore.Weighted
	config    ExecutorConfig
	logger    *slog.Logger
	now       func() time.Time
	newStepID func() uuid.UUID
	wg        sync.WaitGroup
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithRecorder persists every StepResult through r.
func WithRecorder(r StepRecorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithPolicy sets the policy used to classify failures.
func WithPolicy(p *retry.Policy) ExecutorOption {
	return func(e *Executor) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithFs sets the filesystem that holds local sinks.
func WithFs(fsys afero.Fs) ExecutorOption {
	return func(e *Executor) {
		if fsys != nil {
			e.fs = fsys
		}
	}
}

// WithExporter replaces the default comma-separated exporter.
func WithExporter(x *export.Exporter) ExecutorOption {
	return func(e *Executor) {
		if x != nil {
			e.exporter = x
		}
	}
}

// WithClock sets the time source used for object key dates.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStepIDGenerator sets the step id source.
func WithStepIDGenerator(gen func() uuid.UUID) ExecutorOption {
	return func(e *Executor) {
		if gen != nil {
			e.newStepID = gen
		}
	}
}

// NewExecutor creates an Executor.
func NewExecutor(
	conns ConnectionProvider,
	publisher Publisher,
	config ExecutorConfig,
	logger *slog.Logger,
	opts ...ExecutorOption,
) (*Executor, error) {
	if conns == nil {
		return nil, ErrNilProvider
	}
	if publisher == nil {
		return nil, ErrNilPublisher
	}
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultExecutorConfig()
	if config.ExportDir == "" {
		config.ExportDir = defaults.ExportDir
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}
	if config.FetchSize <= 0 {
		config.FetchSize = defaults.FetchSize
	}

	e := &Executor{
		conns:     conns,
		publisher: publisher,
		exporter:  export.New(),
		policy:    retry.DefaultPolicy(),
		fs:        afero.NewOsFs(),
		config:    config,
		logger:    logger,
		now:       time.Now,
		newStepID: uuid.New,
	}
	for _, opt := range opts {
		opt(e)
	}

	if config.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(int64(config.MaxConcurrent))
	}

	return e, nil
}

// Submit starts one attempt of t in its own goroutine and returns
// immediately. The returned Future resolves exactly once with the attempt's
// StepResult; failures, including panics, arrive as FAILED results. The
// attempt keeps running even if ctx is cancelled.
func (e *Executor) Submit(ctx context.Context, t domain.Task) *Future {
	f := newFuture()
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("%w: %v", ErrPanic, r)
				f.resolve(domain.NewFailedResult(uuid.Nil, t.ID, err.Error(), err, false))
			}
		}()
		f.resolve(e.Run(ctx, t))
	}()

	return f
}

// Wait blocks until every submitted attempt has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Run executes one attempt of t synchronously and returns its StepResult.
// Each call generates a fresh step id. Cancellation of ctx is ignored once
// the attempt has started; the attempt runs to completion or natural failure.
func (e *Executor) Run(ctx context.Context, t domain.Task) (result domain.StepResult) {
	ctx = context.WithoutCancel(ctx)
	stepID := e.newStepID()

	log := e.logger.With(
		"task_id", t.ID,
		"playground_id", t.PlaygroundID,
		"step_id", stepID,
	)
	ctx = logger.WithLogger(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			log.Error("attempt panicked", "panic", r, "stack", string(debug.Stack()))
			result = e.failed(ctx, log, t, stepID, fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	if err := t.Validate(); err != nil {
		return e.failed(ctx, log, t, stepID, fmt.Errorf("%w: %w", domain.ErrValidation, err))
	}

	if e.sem != nil {
		// ctx cannot be cancelled here, so Acquire only returns once a slot frees up.
		_ = e.sem.Acquire(ctx, 1)
		defer e.sem.Release(1)
	}

	log.Info("starting task attempt")
	log.Debug("task query", "query", redact.String(t.Query))

	start := e.now()
	location, rows, err := e.attempt(ctx, log, t, stepID)
	if err != nil {
		return e.failed(ctx, log, t, stepID, err)
	}

	result = domain.NewSuccessResult(stepID, t.ID, location, rows,
		fmt.Sprintf("exported %d rows to %s", rows, location))

	log.Info("task attempt succeeded",
		"rows", rows,
		"output_location", location,
		"duration", e.now().Sub(start))
	e.record(ctx, log, t, result)

	return result
}

// attempt runs the pipeline stages strictly in order. Every error it returns
// is a *StepError.
func (e *Executor) attempt(
	ctx context.Context,
	log *slog.Logger,
	t domain.Task,
	stepID uuid.UUID,
) (string, int64, error) {
	conn, err := e.conns.Acquire(ctx)
	if err != nil {
		return "", 0, &StepError{Step: StepAcquire, Err: err}
	}
	release := sync.OnceFunc(conn.Release)
	defer release()

	rows, err := conn.QueryCursor(ctx, t.Query, e.config.FetchSize)
	if err != nil {
		return "", 0, &StepError{Step: StepExecute, Err: err}
	}
	closeRows := sync.OnceFunc(func() {
		if err := rows.Close(); err != nil {
			log.Warn("failed to close result cursor", "error", redact.Error(err))
		}
	})
	defer closeRows()

	sinkPath := SinkPath(e.config.ExportDir, t, stepID)
	defer e.cleanup(log, sinkPath)

	count, err := e.writeSink(sinkPath, rows)
	if err != nil {
		return "", count, &StepError{Step: StepExport, Err: err}
	}
	log.Debug("rows exported to local sink", "rows", count, "sink", sinkPath)

	// The connection is not needed for publishing; give it back to the pool.
	closeRows()
	release()

	key := ObjectKey(e.config.KeyPrefix, e.now(), t, stepID)
	storedKey, err := e.publisher.Upload(ctx, sinkPath, key)
	if err != nil {
		return "", count, &StepError{Step: StepPublish, Err: err}
	}
	if storedKey == "" {
		storedKey = key
	}

	return domain.ArtifactURI(e.publisher.BucketName(), storedKey), count, nil
}

func (e *Executor) writeSink(sinkPath string, rows Rows) (int64, error) {
	if err := e.fs.MkdirAll(filepath.Dir(sinkPath), 0o750); err != nil {
		return 0, fmt.Errorf("%w: create sink directory: %v", export.ErrExport, err)
	}

	f, err := e.fs.Create(sinkPath)
	if err != nil {
		return 0, fmt.Errorf("%w: create sink: %v", export.ErrExport, err)
	}

	count, err := e.exporter.Export(f, rows)
	closeErr := f.Close()
	if err != nil {
		return count, err
	}
	if closeErr != nil {
		return count, fmt.Errorf("%w: close sink: %v", export.ErrExport, closeErr)
	}

	return count, nil
}

// cleanup removes the local sink. Failures are logged only.
func (e *Executor) cleanup(log *slog.Logger, sinkPath string) {
	if err := e.fs.Remove(sinkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to remove local sink",
			"step", StepCleanup,
			"sink", sinkPath,
			"error", err)
	}
}

func (e *Executor) failed(
	ctx context.Context,
	log *slog.Logger,
	t domain.Task,
	stepID uuid.UUID,
	err error,
) domain.StepResult {
	root := cause(err)
	verdict := e.policy.Classify(root.Error())
	retryable := verdict.Retryable() && !errors.Is(err, domain.ErrValidation)

	log.Error("task attempt failed",
		"step", FailedStep(err),
		"retryable", retryable,
		"classification", verdict.Kind.String(),
		"error", redact.Error(err))

	result := domain.NewFailedResult(stepID, t.ID, err.Error(), root, retryable)
	e.record(ctx, log, t, result)
	return result
}

func (e *Executor) record(ctx context.Context, log *slog.Logger, t domain.Task, result domain.StepResult) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordStep(ctx, t.PlaygroundID, result); err != nil {
		log.Warn("failed to record step result", "error", redact.Error(err))
	}
}
