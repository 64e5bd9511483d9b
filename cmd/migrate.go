package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/db"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pricing schema migrations",
	Long:  "Applies pending schema migrations for the configured store. With --down, rolls back the most recent Postgres migration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		if cfg.Store.Driver == "postgres" {
			if migrateDown {
				if err := db.MigrateDown(cfg.Store.DatabaseURL); err != nil {
					return err
				}
				zap.L().Info("rolled back one migration")
				return nil
			}
			return db.MigrateUp(cfg.Store.DatabaseURL)
		}

		if migrateDown {
			return eris.Errorf("--down is not supported for the %s store", cfg.Store.Driver)
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("all migrations applied successfully", zap.String("store", cfg.Store.Driver))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back the most recent migration")
	rootCmd.AddCommand(migrateCmd)
}
