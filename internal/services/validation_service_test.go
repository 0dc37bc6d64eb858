package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"data-alchemist/backend/internal/repository"
	"data-alchemist/backend/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Warn(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockStore satisfies repository.DatasetStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateDataset(ctx context.Context, ds *models.Dataset) error {
	return m.Called(ctx, ds).Error(0)
}

func (m *MockStore) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dataset), args.Error(1)
}

func (m *MockStore) ListDatasets(ctx context.Context, owner string) ([]*models.Dataset, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]*models.Dataset), args.Error(1)
}

func (m *MockStore) UpdateDataset(ctx context.Context, ds *models.Dataset) error {
	return m.Called(ctx, ds).Error(0)
}

func (m *MockStore) DeleteDataset(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) SaveResult(ctx context.Context, result *models.ValidationResult) (bool, error) {
	args := m.Called(ctx, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) LatestResult(ctx context.Context, datasetID string) (*models.ValidationResult, error) {
	args := m.Called(ctx, datasetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ValidationResult), args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fakeAdvisor struct {
	suggestions []Suggestion
	err         error
	calls       int
}

func (f *fakeAdvisor) Review(ctx context.Context, records models.Records, defects []models.Defect) ([]Suggestion, error) {
	f.calls++
	return f.suggestions, f.err
}

func cleanRecords() models.Records {
	return models.Records{
		Clients: []models.Client{
			{ClientID: "C1", ClientName: "Acme", PriorityLevel: 3, RequestedTaskIDs: models.StringList{"T1"}},
		},
		Workers: []models.Worker{
			{WorkerID: "W1", WorkerName: "Ada", Skills: models.StringList{"go"}, AvailableSlots: models.NewPhaseList(1, 2), MaxLoadPerPhase: 2},
		},
		Tasks: []models.Task{
			{TaskID: "T1", TaskName: "Build", Duration: 1, RequiredSkills: models.StringList{"go"}, PreferredPhases: models.NewPhaseList(1), MaxConcurrent: 1},
		},
	}
}

// brokenRecords has one error defect: the client has no name.
func brokenRecords() models.Records {
	r := cleanRecords()
	r.Clients[0].ClientName = ""
	return r
}

func newService(t *testing.T, store repository.DatasetStore, advisor Advisor) *ValidationService {
	t.Helper()
	svc, err := NewValidationService(store, advisor, &NoOpLogger{})
	require.NoError(t, err)
	return svc
}

func TestValidate_Clean(t *testing.T) {
	svc := newService(t, repository.NewMemoryDatasetStore(), nil)

	result, err := svc.Validate(context.Background(), cleanRecords())
	require.NoError(t, err)
	assert.NotNil(t, result.Defects)
	assert.Empty(t, result.Defects)
	assert.True(t, result.Summary.Exportable)
	assert.NotZero(t, result.Sequence)
}

func TestValidate_SequenceIsMonotonic(t *testing.T) {
	svc := newService(t, repository.NewMemoryDatasetStore(), nil)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	var last uint64
	for i := 0; i < 5; i++ {
		r, err := svc.Validate(context.Background(), cleanRecords())
		require.NoError(t, err)
		assert.Greater(t, r.Sequence, last)
		last = r.Sequence
	}
}

func TestValidate_CancelledContext(t *testing.T) {
	svc := newService(t, repository.NewMemoryDatasetStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Validate(ctx, cleanRecords())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate_AdvisorSuggestionsAppended(t *testing.T) {
	advisor := &fakeAdvisor{suggestions: []Suggestion{
		{Entity: models.EntityClients, EntityID: "C1", Field: "GroupTag", Message: "GroupTag is usually set for gold clients"},
		{Entity: models.EntityClients, EntityID: "C1", Field: "GroupTag", Message: "second note"},
		{Message: "dataset looks small"},
	}}
	svc := newService(t, repository.NewMemoryDatasetStore(), advisor)

	result, err := svc.Validate(context.Background(), brokenRecords())
	require.NoError(t, err)
	require.Len(t, result.Defects, 4)

	// Engine defects come first.
	assert.Equal(t, models.KindMissingRequiredField, result.Defects[0].Kind)

	insights := result.Defects[1:]
	assert.Equal(t, "ai_insight:clients:C1:GroupTag", insights[0].ID)
	assert.Equal(t, "ai_insight:clients:C1:GroupTag#2", insights[1].ID)
	assert.Equal(t, "ai_insight:system:system:", insights[2].ID)
	for _, d := range insights {
		assert.Equal(t, models.SeverityInfo, d.Severity)
	}
	assert.Equal(t, 1, result.Summary.Errors)
	assert.Equal(t, 3, result.Summary.Info)
}

func TestValidate_AdvisorFailureKeepsEngineResult(t *testing.T) {
	advisor := &fakeAdvisor{err: errors.New("advisor down")}
	svc := newService(t, repository.NewMemoryDatasetStore(), advisor)

	result, err := svc.Validate(context.Background(), brokenRecords())
	require.NoError(t, err)
	assert.Equal(t, 1, advisor.calls)
	require.Len(t, result.Defects, 1)
	assert.Equal(t, models.KindMissingRequiredField, result.Defects[0].Kind)
}

func TestDatasetLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, repository.NewMemoryDatasetStore(), nil)

	ds, err := svc.CreateDataset(ctx, "ada@acme.com", "q3 plan", brokenRecords())
	require.NoError(t, err)
	assert.NotEmpty(t, ds.ID)
	assert.Equal(t, 1, ds.Version)

	list, err := svc.ListDatasets(ctx, "ada@acme.com")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	result, err := svc.ValidateDataset(ctx, "ada@acme.com", ds.ID)
	require.NoError(t, err)
	assert.Equal(t, ds.ID, result.DatasetID)
	assert.Equal(t, 1, result.DatasetVersion)
	assert.False(t, result.Superseded)
	assert.Equal(t, 1, result.Summary.Errors)

	stored, err := svc.LatestResult(ctx, "ada@acme.com", ds.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Sequence, stored.Sequence)

	updated, err := svc.UpdateDataset(ctx, "ada@acme.com", ds.ID, "", cleanRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "q3 plan", updated.Name)

	require.NoError(t, svc.DeleteDataset(ctx, "ada@acme.com", ds.ID))
	_, err = svc.GetDataset(ctx, "ada@acme.com", ds.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDatasetsAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, repository.NewMemoryDatasetStore(), nil)

	ds, err := svc.CreateDataset(ctx, "ada@acme.com", "mine", cleanRecords())
	require.NoError(t, err)

	_, err = svc.GetDataset(ctx, "eve@other.org", ds.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.ValidateDataset(ctx, "eve@other.org", ds.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteDataset(ctx, "eve@other.org", ds.ID), repository.ErrNotFound)

	list, err := svc.ListDatasets(ctx, "eve@other.org")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestValidateDataset_Superseded(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	ds := &models.Dataset{ID: "ds-1", Owner: "ada@acme.com", Version: 3}
	r := cleanRecords()
	ds.Clients, ds.Workers, ds.Tasks = r.Clients, r.Workers, r.Tasks

	store.On("GetDataset", mock.Anything, "ds-1").Return(ds, nil)
	store.On("SaveResult", mock.Anything, mock.MatchedBy(func(res *models.ValidationResult) bool {
		return res.DatasetID == "ds-1" && res.DatasetVersion == 3
	})).Return(false, nil)

	svc := newService(t, store, nil)
	result, err := svc.ValidateDataset(ctx, "ada@acme.com", "ds-1")
	require.NoError(t, err)
	assert.True(t, result.Superseded)
	store.AssertExpectations(t)
}

// interleavingStore runs afterRead once, right after the first snapshot read.
type interleavingStore struct {
	*repository.MemoryDatasetStore
	afterRead func()
}

func (s *interleavingStore) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	ds, err := s.MemoryDatasetStore.GetDataset(ctx, id)
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return ds, err
}

func TestValidateDataset_OlderSnapshotNeverWins(t *testing.T) {
	ctx := context.Background()
	store := &interleavingStore{MemoryDatasetStore: repository.NewMemoryDatasetStore()}
	svc := newService(t, store, nil)

	ds, err := svc.CreateDataset(ctx, "ada@acme.com", "plan", brokenRecords())
	require.NoError(t, err)

	var newer *models.ValidationResult
	store.afterRead = func() {
		_, err := svc.UpdateDataset(ctx, "ada@acme.com", ds.ID, "", cleanRecords())
		require.NoError(t, err)
		newer, err = svc.ValidateDataset(ctx, "ada@acme.com", ds.ID)
		require.NoError(t, err)
	}

	older, err := svc.ValidateDataset(ctx, "ada@acme.com", ds.ID)
	require.NoError(t, err)
	require.NotNil(t, newer)

	assert.Equal(t, 1, older.DatasetVersion)
	assert.Less(t, older.Sequence, newer.Sequence)
	assert.True(t, older.Superseded)
	assert.Equal(t, 2, newer.DatasetVersion)
	assert.False(t, newer.Superseded)

	stored, err := svc.LatestResult(ctx, "ada@acme.com", ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.DatasetVersion)
	assert.Equal(t, 0, stored.Summary.Errors)
}

func TestValidateDataset_SaveError(t *testing.T) {
	store := new(MockStore)
	store.On("GetDataset", mock.Anything, "ds-1").Return(&models.Dataset{ID: "ds-1", Owner: "ada@acme.com", Version: 1}, nil)
	store.On("SaveResult", mock.Anything, mock.Anything).Return(false, errors.New("connection reset"))

	svc := newService(t, store, nil)
	_, err := svc.ValidateDataset(context.Background(), "ada@acme.com", "ds-1")
	assert.ErrorContains(t, err, "failed to save validation result")
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, repository.NewMemoryDatasetStore(), nil)

	ds, err := svc.CreateDataset(ctx, "ada@acme.com", "plan", brokenRecords())
	require.NoError(t, err)

	// No result yet: export validates first and is blocked by the error.
	_, err = svc.Export(ctx, "ada@acme.com", ds.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExportBlocked)
	var blocked *ExportBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, 1, blocked.Summary.Errors)
	assert.Equal(t, 1, blocked.Version)

	// Fixing the records bumps the version, so the stale result is ignored.
	_, err = svc.UpdateDataset(ctx, "ada@acme.com", ds.ID, "", cleanRecords())
	require.NoError(t, err)

	bundle, err := svc.Export(ctx, "ada@acme.com", ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, bundle.Dataset.Version)
	assert.Equal(t, 2, bundle.Result.DatasetVersion)
	assert.True(t, bundle.Result.Summary.Exportable)
}

func TestExport_WarningsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, repository.NewMemoryDatasetStore(), nil)

	r := cleanRecords()
	// Two phases of demand on a worker with one unit of capacity per phase.
	r.Workers[0].MaxLoadPerPhase = 1
	r.Tasks[0].Duration = 2
	r.Tasks = append(r.Tasks, models.Task{TaskID: "T2", TaskName: "Test", Duration: 1, PreferredPhases: models.NewPhaseList(1), MaxConcurrent: 1})

	ds, err := svc.CreateDataset(ctx, "ada@acme.com", "plan", r)
	require.NoError(t, err)

	bundle, err := svc.Export(ctx, "ada@acme.com", ds.ID)
	require.NoError(t, err)
	assert.Zero(t, bundle.Result.Summary.Errors)
	assert.NotZero(t, bundle.Result.Summary.Warnings)
}

func TestPing(t *testing.T) {
	store := new(MockStore)
	store.On("Ping", mock.Anything).Return(errors.New("db down"))

	svc := newService(t, store, nil)
	assert.EqualError(t, svc.Ping(context.Background()), "db down")
}
