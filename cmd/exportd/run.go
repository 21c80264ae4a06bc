package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/retry"
)

// errTaskFailed makes the process exit non-zero when a task did not succeed.
var errTaskFailed = errors.New("task did not succeed")

type runOptions struct {
	playgroundID string
	taskID       string
	query        string
	queryFile    string
	retry        bool
}

// runOutput is the JSON document printed for each finished task.
type runOutput struct {
	Attempts int               `json:"attempts"`
	Result   domain.StepResult `json:"result"`
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single export task",
		Long: `Execute one export task and print its step result as JSON.

With --retry, failed attempts whose error is classified as transient are
re-run with exponential backoff, up to retry.max_retries times.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.playgroundID, "workspace", "w", "", "Workspace (playground) id that owns the task")
	cmd.Flags().StringVarP(&opts.taskID, "task", "t", "", "Task id (generated when empty)")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "SQL query to export")
	cmd.Flags().StringVarP(&opts.queryFile, "query-file", "f", "", "Read the SQL query from this file")
	cmd.Flags().BoolVar(&opts.retry, "retry", false, "Retry transient failures per the retry policy")
	_ = cmd.MarkFlagRequired("workspace")
	cmd.MarkFlagsMutuallyExclusive("query", "query-file")
	cmd.MarkFlagsOneRequired("query", "query-file")

	return cmd
}

func runRun(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	query := opts.query
	if opts.queryFile != "" {
		data, err := os.ReadFile(opts.queryFile)
		if err != nil {
			return fmt.Errorf("failed to read query file: %w", err)
		}
		query = string(data)
	}

	taskID := strings.TrimSpace(opts.taskID)
	if taskID == "" {
		taskID = uuid.NewString()
	}

	t, err := domain.NewTask(opts.playgroundID, taskID, query)
	if err != nil {
		return fmt.Errorf("invalid task: %w", err)
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

	outcome, err := app.runTask(ctx, t, opts.retry)
	if err != nil {
		log.Warn("retry loop stopped early", "task_id", t.ID, "error", err)
	}

	if err := writeOutcome(cmd.OutOrStdout(), outcome, true); err != nil {
		return err
	}
	if !outcome.Result.State().Succeeded() {
		return errTaskFailed
	}
	return nil
}

func writeOutcome(w io.Writer, outcome retry.Outcome, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(runOutput{Attempts: outcome.Attempts, Result: outcome.Result}); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
