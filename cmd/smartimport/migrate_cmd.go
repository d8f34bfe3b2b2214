package main

import (
	"github.com/spf13/cobra"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, revert) the embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := cfg.NewLogger()
			if down > 0 {
				return db.RollbackMigrations(cfg.Database, logger, down)
			}
			return db.RunMigrations(cfg.Database, logger)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "Number of migrations to revert")
	return cmd
}
