package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"data-alchemist/backend/internal/config"
	"data-alchemist/backend/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if cfg.Storage.Driver != config.StoragePostgres {
			return fmt.Errorf("migrations need the postgres storage driver, got %q", cfg.Storage.Driver)
		}
		if err := repository.Migrate(cfg.MigrationURL()); err != nil {
			return err
		}
		logger.Info("Database migrations applied", "host", cfg.DB.Host, "name", cfg.DB.Name)
		return nil
	},
}
