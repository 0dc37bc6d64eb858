package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"data-alchemist/backend/pkg/models"
)

// MemoryDatasetStore is an in-process DatasetStore for development and
// tests. Values are copied on the way in and out so callers never share
// state with the store.
type MemoryDatasetStore struct {
	mu       sync.RWMutex
	datasets map[string]*models.Dataset
	results  map[string]*models.ValidationResult
	now      func() time.Time
}

// NewMemoryDatasetStore creates an empty MemoryDatasetStore.
func NewMemoryDatasetStore() *MemoryDatasetStore {
	return &MemoryDatasetStore{
		datasets: make(map[string]*models.Dataset),
		results:  make(map[string]*models.ValidationResult),
		now:      time.Now,
	}
}

// CreateDataset stores a new dataset.
func (s *MemoryDatasetStore) CreateDataset(ctx context.Context, ds *models.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	if _, exists := s.datasets[ds.ID]; exists {
		return fmt.Errorf("dataset %s already exists", ds.ID)
	}
	now := s.now().UTC()
	ds.Version = 1
	ds.CreatedAt = now
	ds.UpdatedAt = now

	stored, err := clone(ds)
	if err != nil {
		return err
	}
	s.datasets[ds.ID] = stored
	return nil
}

// GetDataset retrieves a dataset by its ID.
func (s *MemoryDatasetStore) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(ds)
}

// ListDatasets returns the datasets of an owner, newest first.
func (s *MemoryDatasetStore) ListDatasets(ctx context.Context, owner string) ([]*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Dataset, 0)
	for _, ds := range s.datasets {
		if ds.Owner != owner {
			continue
		}
		c, err := clone(ds)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateDataset replaces the records of an existing dataset.
func (s *MemoryDatasetStore) UpdateDataset(ctx context.Context, ds *models.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.datasets[ds.ID]
	if !ok {
		return ErrNotFound
	}
	ds.Owner = existing.Owner
	ds.CreatedAt = existing.CreatedAt
	ds.Version = existing.Version + 1
	ds.UpdatedAt = s.now().UTC()

	stored, err := clone(ds)
	if err != nil {
		return err
	}
	s.datasets[ds.ID] = stored
	return nil
}

// DeleteDataset removes a dataset and its result.
func (s *MemoryDatasetStore) DeleteDataset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[id]; !ok {
		return ErrNotFound
	}
	delete(s.datasets, id)
	delete(s.results, id)
	return nil
}

// SaveResult keeps the result only if it is newer than the stored one and
// was computed from the same or a later dataset version.
func (s *MemoryDatasetStore) SaveResult(ctx context.Context, result *models.ValidationResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[result.DatasetID]; !ok {
		return false, ErrNotFound
	}
	if current, ok := s.results[result.DatasetID]; ok && (current.Sequence >= result.Sequence || current.DatasetVersion > result.DatasetVersion) {
		return false, nil
	}
	stored, err := clone(result)
	if err != nil {
		return false, err
	}
	s.results[result.DatasetID] = stored
	return true, nil
}

// LatestResult returns the stored result of a dataset.
func (s *MemoryDatasetStore) LatestResult(ctx context.Context, datasetID string) (*models.ValidationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[datasetID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r)
}

// Ping always succeeds.
func (s *MemoryDatasetStore) Ping(ctx context.Context) error {
	return nil
}

func clone[T any](v *T) (*T, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to copy value: %w", err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to copy value: %w", err)
	}
	return &out, nil
}
