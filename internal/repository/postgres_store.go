package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"data-alchemist/backend/pkg/models"
)

const foreignKeyViolation = "23503"

// PostgresDatasetStore is a PostgreSQL implementation of DatasetStore.
// Record collections and defects are stored as JSONB.
type PostgresDatasetStore struct {
	db *pgxpool.Pool
}

// NewPostgresDatasetStore creates a new PostgresDatasetStore.
func NewPostgresDatasetStore(db *pgxpool.Pool) *PostgresDatasetStore {
	return &PostgresDatasetStore{db: db}
}

// CreateDataset stores a new dataset.
func (s *PostgresDatasetStore) CreateDataset(ctx context.Context, ds *models.Dataset) error {
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	clients, workers, tasks, err := encodeRecords(ds)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ds.Version = 1
	ds.CreatedAt = now
	ds.UpdatedAt = now

	_, err = s.db.Exec(ctx,
		`INSERT INTO datasets (id, owner, name, clients, workers, tasks, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ds.ID, ds.Owner, ds.Name, clients, workers, tasks, ds.Version, ds.CreatedAt, ds.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}
	return nil
}

// GetDataset retrieves a dataset by its ID.
func (s *PostgresDatasetStore) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, owner, name, clients, workers, tasks, version, created_at, updated_at
		 FROM datasets WHERE id = $1`, id)
	ds, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return ds, nil
}

// ListDatasets returns the datasets of an owner, newest first.
func (s *PostgresDatasetStore) ListDatasets(ctx context.Context, owner string) ([]*models.Dataset, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner, name, clients, workers, tasks, version, created_at, updated_at
		 FROM datasets WHERE owner = $1 ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]*models.Dataset, 0)
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, rows.Err()
}

// UpdateDataset replaces the records of an existing dataset.
func (s *PostgresDatasetStore) UpdateDataset(ctx context.Context, ds *models.Dataset) error {
	clients, workers, tasks, err := encodeRecords(ds)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx,
		`UPDATE datasets
		 SET name = $2, clients = $3, workers = $4, tasks = $5, version = version + 1, updated_at = now()
		 WHERE id = $1
		 RETURNING owner, version, created_at, updated_at`,
		ds.ID, ds.Name, clients, workers, tasks).Scan(&ds.Owner, &ds.Version, &ds.CreatedAt, &ds.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	return nil
}

// DeleteDataset removes a dataset. Results go with it through the cascade.
func (s *PostgresDatasetStore) DeleteDataset(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM datasets WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResult upserts the result unless a newer sequence or a later dataset
// version is already stored.
func (s *PostgresDatasetStore) SaveResult(ctx context.Context, result *models.ValidationResult) (bool, error) {
	defects, err := json.Marshal(result.Defects)
	if err != nil {
		return false, fmt.Errorf("failed to marshal defects: %w", err)
	}
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return false, fmt.Errorf("failed to marshal summary: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO validation_results (dataset_id, sequence, dataset_version, defects, summary, validated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (dataset_id) DO UPDATE
		 SET sequence = EXCLUDED.sequence,
		     dataset_version = EXCLUDED.dataset_version,
		     defects = EXCLUDED.defects,
		     summary = EXCLUDED.summary,
		     validated_at = EXCLUDED.validated_at
		 WHERE validation_results.sequence < EXCLUDED.sequence
		   AND validation_results.dataset_version <= EXCLUDED.dataset_version`,
		result.DatasetID, int64(result.Sequence), result.DatasetVersion, defects, summary, result.ValidatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to save validation result: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LatestResult returns the stored result of a dataset.
func (s *PostgresDatasetStore) LatestResult(ctx context.Context, datasetID string) (*models.ValidationResult, error) {
	var (
		r       models.ValidationResult
		seq     int64
		defects []byte
		summary []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT dataset_id, sequence, dataset_version, defects, summary, validated_at
		 FROM validation_results WHERE dataset_id = $1`, datasetID).
		Scan(&r.DatasetID, &seq, &r.DatasetVersion, &defects, &summary, &r.ValidatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation result: %w", err)
	}

	r.Sequence = uint64(seq)
	if err := json.Unmarshal(defects, &r.Defects); err != nil {
		return nil, fmt.Errorf("failed to decode defects: %w", err)
	}
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &r, nil
}

// Ping checks that the database is reachable.
func (s *PostgresDatasetStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func encodeRecords(ds *models.Dataset) (clients, workers, tasks []byte, err error) {
	if clients, err = json.Marshal(nonNil(ds.Clients)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal clients: %w", err)
	}
	if workers, err = json.Marshal(nonNil(ds.Workers)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal workers: %w", err)
	}
	if tasks, err = json.Marshal(nonNil(ds.Tasks)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal tasks: %w", err)
	}
	return clients, workers, tasks, nil
}

func scanDataset(row pgx.Row) (*models.Dataset, error) {
	var ds models.Dataset
	var clients, workers, tasks []byte
	if err := row.Scan(&ds.ID, &ds.Owner, &ds.Name, &clients, &workers, &tasks, &ds.Version, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(clients, &ds.Clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	if err := json.Unmarshal(workers, &ds.Workers); err != nil {
		return nil, fmt.Errorf("failed to decode workers: %w", err)
	}
	if err := json.Unmarshal(tasks, &ds.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return &ds, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
