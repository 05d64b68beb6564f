package main

import (
	"github.com/spf13/cobra"

	"kirana-voice/internal/db"
)

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			return db.Migrate(ctx, pool, dir, log)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory holding .sql migration files")
	return cmd
}
