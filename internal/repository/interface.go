package repository

import (
	"context"
	"errors"

	"data-alchemist/backend/pkg/models"
)

// ErrNotFound is returned when a dataset or result does not exist.
var ErrNotFound = errors.New("not found")

// DatasetStore persists uploaded datasets and their latest validation result.
type DatasetStore interface {
	// CreateDataset stores a new dataset. ID, Version and timestamps are set
	// by the store.
	CreateDataset(ctx context.Context, ds *models.Dataset) error
	// GetDataset retrieves a dataset by its ID.
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	// ListDatasets returns the datasets of an owner, newest first.
	ListDatasets(ctx context.Context, owner string) ([]*models.Dataset, error)
	// UpdateDataset replaces the records of an existing dataset and bumps
	// its version.
	UpdateDataset(ctx context.Context, ds *models.Dataset) error
	// DeleteDataset removes a dataset and its results.
	DeleteDataset(ctx context.Context, id string) error
	// SaveResult stores a result unless a newer one (by sequence) is
	// already stored. It reports whether the result was kept.
	SaveResult(ctx context.Context, result *models.ValidationResult) (bool, error)
	// LatestResult returns the stored result of a dataset.
	LatestResult(ctx context.Context, datasetID string) (*models.ValidationResult, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
