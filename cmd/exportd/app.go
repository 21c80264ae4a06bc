package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/spf13/afero"

	"github.com/phrazzld/taskexport/internal/config"
	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/platform/objectstore"
	"github.com/phrazzld/taskexport/internal/platform/postgres"
	"github.com/phrazzld/taskexport/internal/platform/sqlsource"
	"github.com/phrazzld/taskexport/internal/retry"
	"github.com/phrazzld/taskexport/internal/task"
)

// application holds the wired dependencies of one command invocation and
// releases them in cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger

	conns     task.ConnectionProvider
	publisher task.Publisher
	policy    *retry.Policy
	executor  *task.Executor
	submitter task.Submitter

	storeDB *sql.DB

	closers []func()
}

// newApplication wires the executor from cfg. fsys holds the local sinks.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, fsys afero.Fs) (*application, error) {
	app := &application{config: cfg, logger: logger}

	var err error
	app.policy, err = retry.NewPolicy(retryConfig(cfg.Retry))
	if err != nil {
		return nil, fmt.Errorf("invalid retry configuration: %w", err)
	}

	if err := app.setupSource(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	app.publisher, err = objectstore.New(ctx, cfg.Storage, fsys, logger.With("component", "publisher"))
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to set up publisher: %w", err)
	}
	if c, ok := app.publisher.(interface{ Close() error }); ok {
		app.closers = append(app.closers, func() {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close publisher", "error", err)
			}
		})
	}

	opts := []task.ExecutorOption{
		task.WithPolicy(app.policy),
		task.WithFs(fsys),
	}

	if cfg.Store.URL != "" {
		app.storeDB, err = sql.Open("pgx", cfg.Store.URL)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to open step store: %w", err)
		}
		db := app.storeDB
		app.closers = append(app.closers, func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close step store", "error", err)
			}
		})
		opts = append(opts, task.WithRecorder(postgres.NewStepStore(db)))
	}

	app.executor, err = task.NewExecutor(app.conns, app.publisher, task.ExecutorConfig{
		ExportDir:     cfg.Export.Dir,
		KeyPrefix:     cfg.Storage.Prefix,
		FetchSize:     cfg.Source.FetchSize,
		MaxConcurrent: cfg.Export.MaxConcurrent,
	}, logger, opts...)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	app.submitter = app.executor

	logger.Info("application initialized",
		"source_driver", cfg.Source.Driver,
		"storage_backend", cfg.Storage.Backend)
	return app, nil
}

func (app *application) setupSource(ctx context.Context) error {
	cfg := app.config.Source
	log := app.logger.With("component", "source")

	switch cfg.Driver {
	case "postgres":
		p, err := postgres.NewProvider(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to set up source: %w", err)
		}
		app.conns = p
		app.closers = append(app.closers, p.Close)
	default:
		p, err := sqlsource.Open(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to set up source: %w", err)
		}
		app.conns = p
		app.closers = append(app.closers, func() {
			if err := p.Close(); err != nil {
				log.Warn("failed to close source", "error", err)
			}
		})
	}
	return nil
}

// runTask submits t, retrying per the configured policy when withRetry is set.
// Each attempt is submitted separately and its Future awaited to completion.
func (app *application) runTask(ctx context.Context, t domain.Task, withRetry bool) (retry.Outcome, error) {
	if !withRetry {
		return retry.Outcome{Result: app.submitter.Submit(ctx, t).Result(), Attempts: 1}, nil
	}
	return app.policy.Run(ctx, func(ctx context.Context, attempt int) domain.StepResult {
		if attempt > 0 {
			app.logger.Info("retrying task", "task_id", t.ID, "attempt", attempt+1)
		}
		return app.submitter.Submit(ctx, t).Result()
	})
}

// cleanup waits for in-flight attempts and releases resources in reverse
// order of acquisition.
func (app *application) cleanup() {
	if app.executor != nil {
		app.executor.Wait()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}

func retryConfig(c config.RetryConfig) retry.Config {
	return retry.Config{
		MaxRetries:        c.MaxRetries,
		BaseDelay:         c.BaseDelay,
		BackoffMultiplier: c.BackoffMultiplier,
		MaxDelay:          c.MaxDelay,
		JitterEnabled:     c.JitterEnabled,
		JitterFactor:      c.JitterFactor,
	}
}
