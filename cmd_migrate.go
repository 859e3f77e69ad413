package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"steamwash-cloud/internal/config"
	"steamwash-cloud/internal/sqldb"
	"steamwash-cloud/internal/tasks"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and seed the singleton rows",
		Long: `migrate applies the schema to the configured SQL database and inserts the
default system state, usage and tariff rows when they are missing. Running it
twice is harmless.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.UsesSQL() {
				return fmt.Errorf("migrate: store_driver %q keeps no database", config.DriverMemory)
			}
			dialect, err := sqldb.ParseDialect(cfg.StoreDriver)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := sqldb.Open(ctx, dialect, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open %s: %w", dialect, err)
			}
			defer db.Close()

			now := time.Now().UTC()
			if err := db.Migrate(ctx, migrationDefaults(), now); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schema applied (%s)\n", dialect)

			seed, _ := cmd.Flags().GetBool("seed-tasks")
			if !seed && !cfg.SeedSampleTasks {
				return nil
			}
			repo, err := tasks.NewSQLRepository(db)
			if err != nil {
				return err
			}
			seeded, err := repo.SeedSamples(ctx, now)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "seeded %d sample tasks\n", seeded)
			return nil
		},
	}
	cmd.Flags().Bool("seed-tasks", false, "Insert the sample maintenance tasks into an empty task table")
	return cmd
}
