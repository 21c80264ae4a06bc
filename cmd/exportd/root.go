package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phrazzld/taskexport/internal/config"
	"github.com/phrazzld/taskexport/internal/platform/logger"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "exportd",
		Short: "Run SQL export tasks and publish the results",
		Long: `exportd executes SQL queries against a relational source, streams each
result set into a CSV file and uploads it to object storage. Every execution
attempt produces a step result describing its outcome.

Configuration is read from an optional YAML file and from EXPORTD_*
environment variables, which take precedence.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to a YAML configuration file")

	cmd.AddCommand(
		newRunCmd(opts),
		newBatchCmd(opts),
		newMigrateCmd(opts),
		newHistoryCmd(opts),
	)

	return cmd
}

// loadAppConfig loads configuration and sets up logging on stderr, keeping
// stdout free for command output.
func loadAppConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.SetupWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Debug("configuration loaded",
		"source_driver", cfg.Source.Driver,
		"storage_backend", cfg.Storage.Backend,
		"bucket", cfg.Storage.Bucket,
		"store_enabled", cfg.Store.URL != "")

	return cfg, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
