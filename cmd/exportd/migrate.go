package main

import (
	"github.com/spf13/cobra"

	"github.com/phrazzld/taskexport/internal/platform/postgres"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down|reset|status|version>",
		Short:     "Manage the step result store schema",
		Long:      `Apply or inspect the migrations of the step result store configured by store.url.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "reset", "status", "version"},
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

			return postgres.Migrate(cmd.Context(), db, args[0], log)
		},
	}
}
