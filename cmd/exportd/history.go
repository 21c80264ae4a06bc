package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/taskexport/internal/config"
	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/platform/postgres"
	"github.com/phrazzld/taskexport/internal/store"
)

// historyOutput is the JSON document printed by the history command.
type historyOutput struct {
	PlaygroundID string              `json:"playground_id"`
	TaskID       string              `json:"task_id"`
	State        string              `json:"state"`
	Attempts     int                 `json:"attempts"`
	LatestStepID string              `json:"latest_step_id"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Steps        []domain.StepResult `json:"steps"`
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var playgroundID, taskID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recorded attempts of a task",
		Long:  `Print the latest state and every recorded step result of a task, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadAppConfig(cmd, root)
			if err != nil {
				return err
			}

			db, err := openStoreDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStoreDB(db, log)

			return writeHistory(cmd.Context(), cmd.OutOrStdout(), postgres.NewStepStore(db), playgroundID, taskID)
		},
	}

	cmd.Flags().StringVarP(&playgroundID, "workspace", "w", "", "Workspace (playground) id that owns the task")
	cmd.Flags().StringVarP(&taskID, "task", "t", "", "Task id to look up")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func writeHistory(ctx context.Context, w io.Writer, steps store.StepStore, playgroundID, taskID string) error {
	sum, err := steps.Summary(ctx, playgroundID, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return fmt.Errorf("no steps recorded for task %q in workspace %q", taskID, playgroundID)
		}
		return fmt.Errorf("failed to load task summary: %w", err)
	}

	list, err := steps.ListByTask(ctx, playgroundID, taskID)
	if err != nil {
		return fmt.Errorf("failed to list task steps: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(historyOutput{
		PlaygroundID: sum.PlaygroundID,
		TaskID:       sum.TaskID,
		State:        sum.State.String(),
		Attempts:     sum.Attempts,
		LatestStepID: sum.LatestStepID.String(),
		UpdatedAt:    sum.UpdatedAt,
		Steps:        list,
	}); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// openStoreDB connects to the step result store named by store.url.
func openStoreDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Store.URL == "" {
		return nil, errors.New("store.url is not configured (set EXPORTD_STORE_URL)")
	}

	db, err := sql.Open("pgx", cfg.Store.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func closeStoreDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("failed to close database connection", "error", err)
	}
}
