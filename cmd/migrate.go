package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewbrief/crewbrief/internal/config"
	"github.com/crewbrief/crewbrief/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating configuration: %w", err)
		}

		if err := database.Migrate(cfg.PostgresURL()); err != nil {
			return err
		}

		logger.Info("migrations applied", "database", cfg.PostgresDBName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
