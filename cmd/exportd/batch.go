package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/retry"
)

// batchFile is the YAML document accepted by the batch command.
type batchFile struct {
	Tasks []domain.Task `yaml:"tasks"`
}

type batchOptions struct {
	retry    bool
	parallel int
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <tasks.yaml>",
		Short: "Execute every task listed in a YAML file",
		Long: `Execute the tasks listed in a YAML file concurrently and print one JSON
line per finished task, in completion order.

The file lists tasks under a top-level "tasks" key:

  tasks:
    - playground_id: ws1
      id: daily-orders
      query: SELECT * FROM orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.retry, "retry", false, "Retry transient failures per the retry policy")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 0, "Maximum tasks in flight (0 = no limit beyond export.max_concurrent)")

	return cmd
}

// loadBatchFile parses and validates a batch file. Task ids must be unique
// within the file.
func loadBatchFile(r io.Reader) ([]domain.Task, error) {
	var file batchFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("batch file is empty")
		}
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, errors.New("batch file lists no tasks")
	}

	seen := make(map[string]struct{}, len(file.Tasks))
	for i, t := range file.Tasks {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("task %d: duplicate task id %q", i+1, t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	return file.Tasks, nil
}

func runBatch(cmd *cobra.Command, root *rootOptions, opts *batchOptions, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open batch file: %w", err)
	}
	tasks, err := loadBatchFile(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	cfg, log, err := loadAppConfig(cmd, root)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	app, err := newApplication(ctx, cfg, log, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer app.cleanup()

	outcomes, err := app.runBatch(ctx, tasks, opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if !o.Result.State().Succeeded() {
			failed++
		}
	}
	log.Info("batch finished", "tasks", len(tasks), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d tasks failed", errTaskFailed, failed, len(tasks))
	}
	return nil
}

// runBatch runs tasks concurrently, writing each outcome to w as it finishes.
// Outcomes are returned in task order.
func (app *application) runBatch(ctx context.Context, tasks []domain.Task, opts *batchOptions, w io.Writer) ([]retry.Outcome, error) {
	outcomes := make([]retry.Outcome, len(tasks))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if opts.parallel > 0 {
		g.SetLimit(opts.parallel)
	}

	for i, t := range tasks {
		g.Go(func() error {
			outcome, err := app.runTask(gctx, t, opts.retry)
			if err != nil {
				app.logger.Warn("retry loop stopped early", "task_id", t.ID, "error", err)
			}
			outcomes[i] = outcome

			mu.Lock()
			defer mu.Unlock()
			return writeOutcome(w, outcome, false)
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}
