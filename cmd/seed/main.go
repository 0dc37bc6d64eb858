package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"data-alchemist/backend/internal/auth"
	"data-alchemist/backend/internal/config"
	"data-alchemist/backend/internal/logging"
	"data-alchemist/backend/internal/repository"
	"data-alchemist/backend/internal/services"
	"data-alchemist/backend/pkg/models"
)

//go:embed sample.yaml
var sampleYAML []byte

const datasetName = "Sample allocation round"

func main() {
	logger := logging.NewLogger()

	configFile := flag.String("config", "", "Path to config file")
	owner := flag.String("owner", auth.DevOwner, "Email of the dataset owner")
	flag.Parse()

	if err := run(context.Background(), logger, *configFile, *owner); err != nil {
		logger.Error("Seeding failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, logger *logging.Logger, configFile, owner string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		return fmt.Errorf("seeding needs the postgres storage driver, got %q", cfg.Storage.Driver)
	}

	if err := repository.Migrate(cfg.MigrationURL()); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer pool.Close()

	svc, err := services.NewValidationService(repository.NewPostgresDatasetStore(pool), nil, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	// Skip if already seeded for this owner
	existing, err := svc.ListDatasets(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to list existing datasets: %w", err)
	}
	for _, ds := range existing {
		if ds.Name == datasetName {
			logger.Info("Skipping existing dataset", "id", ds.ID, "owner", owner)
			return nil
		}
	}

	var records models.Records
	if err := yaml.Unmarshal(sampleYAML, &records); err != nil {
		return fmt.Errorf("failed to parse sample data: %w", err)
	}

	ds, err := svc.CreateDataset(ctx, owner, datasetName, records)
	if err != nil {
		return err
	}

	result, err := svc.ValidateDataset(ctx, owner, ds.ID)
	if err != nil {
		return fmt.Errorf("failed to validate dataset: %w", err)
	}
	logger.Info("Seeded dataset", "id", ds.ID, "owner", owner,
		"errors", result.Summary.Errors, "warnings", result.Summary.Warnings)
	logger.Info("Seeding complete!")
	return nil
}
