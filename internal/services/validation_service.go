package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"data-alchemist/backend/internal/repository"
	"data-alchemist/backend/internal/validation"
	"data-alchemist/backend/pkg/models"
)

const meterName = "data-alchemist/backend/internal/services"

// ValidationService runs the validation engine over posted or stored
// records, appends advisor findings and keeps the newest result per dataset.
type ValidationService struct {
	engine  *validation.Engine
	store   repository.DatasetStore
	advisor Advisor
	logger  Logger
	metrics *serviceMetrics

	lastSeq atomic.Uint64
	now     func() time.Time
}

// NewValidationService creates a new ValidationService. A nil advisor
// disables enhancement.
func NewValidationService(store repository.DatasetStore, advisor Advisor, logger Logger) (*ValidationService, error) {
	if advisor == nil {
		advisor = NoopAdvisor{}
	}
	m, err := newServiceMetrics(otel.Meter(meterName))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	return &ValidationService{
		engine:  validation.NewEngine(),
		store:   store,
		advisor: advisor,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}, nil
}

// Validate runs the engine over the records and appends advisor findings.
// Advisor failures are logged and never fail the run.
func (s *ValidationService) Validate(ctx context.Context, records models.Records) (*models.ValidationResult, error) {
	return s.validate(ctx, s.nextSequence(), records)
}

func (s *ValidationService) validate(ctx context.Context, seq uint64, records models.Records) (*models.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := s.now()

	defects := s.engine.Validate(records.Clients, records.Workers, records.Tasks)
	s.logger.Debug("rule battery finished", "sequence", seq, "defects", len(defects))

	defects = s.enhance(ctx, records, defects)

	result := &models.ValidationResult{
		Sequence:    seq,
		Defects:     defects,
		Summary:     models.Summarize(defects),
		ValidatedAt: s.now().UTC(),
	}
	s.metrics.record(ctx, result, s.now().Sub(start))
	return result, nil
}

func (s *ValidationService) enhance(ctx context.Context, records models.Records, defects []models.Defect) []models.Defect {
	if _, off := s.advisor.(NoopAdvisor); off {
		return defects
	}

	suggestions, err := s.advisor.Review(ctx, records, defects)
	if err != nil {
		s.logger.Warn("advisor review failed, returning rule results only", "error", err)
		return defects
	}

	seen := make(map[string]int)
	for _, sug := range suggestions {
		entity := sug.Entity
		if entity == "" {
			entity = models.EntitySystem
		}
		entityID := sug.EntityID
		if entityID == "" {
			entityID = models.SystemEntityID
		}
		d := models.Defect{
			Kind:     models.KindAIInsight,
			Entity:   entity,
			EntityID: entityID,
			Field:    sug.Field,
			Message:  sug.Message,
			Severity: models.KindAIInsight.Severity(),
		}
		base := fmt.Sprintf("%s:%s:%s:%s", d.Kind, d.Entity, d.EntityID, d.Field)
		seen[base]++
		d.ID = base
		if n := seen[base]; n > 1 {
			d.ID = base + "#" + strconv.Itoa(n)
		}
		defects = append(defects, d)
	}
	return defects
}

// nextSequence returns a strictly increasing number seeded from the clock,
// so runs stay ordered across restarts.
func (s *ValidationService) nextSequence() uint64 {
	for {
		last := s.lastSeq.Load()
		next := uint64(s.now().UnixNano())
		if next <= last {
			next = last + 1
		}
		if s.lastSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

// CreateDataset stores a new dataset owned by owner.
func (s *ValidationService) CreateDataset(ctx context.Context, owner, name string, records models.Records) (*models.Dataset, error) {
	ds := &models.Dataset{
		Owner:   owner,
		Name:    name,
		Clients: records.Clients,
		Workers: records.Workers,
		Tasks:   records.Tasks,
	}
	if err := s.store.CreateDataset(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}
	s.logger.Info("dataset created", "dataset_id", ds.ID, "owner", owner,
		"clients", len(ds.Clients), "workers", len(ds.Workers), "tasks", len(ds.Tasks))
	return ds, nil
}

// GetDataset returns a dataset if it belongs to owner. Datasets of other
// owners are reported as not found.
func (s *ValidationService) GetDataset(ctx context.Context, owner, id string) (*models.Dataset, error) {
	ds, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.Owner != owner {
		return nil, repository.ErrNotFound
	}
	return ds, nil
}

// ListDatasets returns the datasets of owner.
func (s *ValidationService) ListDatasets(ctx context.Context, owner string) ([]*models.Dataset, error) {
	return s.store.ListDatasets(ctx, owner)
}

// UpdateDataset replaces the records of a dataset.
func (s *ValidationService) UpdateDataset(ctx context.Context, owner, id, name string, records models.Records) (*models.Dataset, error) {
	ds, err := s.GetDataset(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		ds.Name = name
	}
	ds.Clients = records.Clients
	ds.Workers = records.Workers
	ds.Tasks = records.Tasks
	if err := s.store.UpdateDataset(ctx, ds); err != nil {
		return nil, err
	}
	s.logger.Info("dataset updated", "dataset_id", ds.ID, "version", ds.Version)
	return ds, nil
}

// DeleteDataset removes a dataset.
func (s *ValidationService) DeleteDataset(ctx context.Context, owner, id string) error {
	if _, err := s.GetDataset(ctx, owner, id); err != nil {
		return err
	}
	return s.store.DeleteDataset(ctx, id)
}

// ValidateDataset validates the stored snapshot and saves the result. If a
// newer run was saved first the result is returned with Superseded set.
func (s *ValidationService) ValidateDataset(ctx context.Context, owner, id string) (*models.ValidationResult, error) {
	// The sequence is taken before the snapshot is read so a call that sees
	// an older version never outranks one that sees a newer version.
	seq := s.nextSequence()
	ds, err := s.GetDataset(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	result, err := s.validate(ctx, seq, models.Records{Clients: ds.Clients, Workers: ds.Workers, Tasks: ds.Tasks})
	if err != nil {
		return nil, err
	}
	result.DatasetID = ds.ID
	result.DatasetVersion = ds.Version

	applied, err := s.store.SaveResult(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("failed to save validation result: %w", err)
	}
	if !applied {
		result.Superseded = true
		s.logger.Info("validation result superseded", "dataset_id", ds.ID, "sequence", result.Sequence)
	}

	s.logger.Info("dataset validated", "dataset_id", ds.ID, "version", ds.Version,
		"errors", result.Summary.Errors, "warnings", result.Summary.Warnings, "info", result.Summary.Info)
	return result, nil
}

// LatestResult returns the stored result for a dataset.
func (s *ValidationService) LatestResult(ctx context.Context, owner, id string) (*models.ValidationResult, error) {
	if _, err := s.GetDataset(ctx, owner, id); err != nil {
		return nil, err
	}
	return s.store.LatestResult(ctx, id)
}

// Export returns the dataset with a result for its current version. It
// validates first when no such result exists. Export is refused with an
// ExportBlockedError while error defects remain.
func (s *ValidationService) Export(ctx context.Context, owner, id string) (*models.ExportBundle, error) {
	ds, err := s.GetDataset(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	result, err := s.store.LatestResult(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound) || (err == nil && result.DatasetVersion != ds.Version):
		result, err = s.ValidateDataset(ctx, owner, id)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if result.Summary.Errors > 0 {
		s.logger.Info("export blocked", "dataset_id", id, "errors", result.Summary.Errors)
		return nil, &ExportBlockedError{Version: ds.Version, Summary: result.Summary}
	}
	return &models.ExportBundle{Dataset: ds, Result: result}, nil
}

// Ping checks the backing store.
func (s *ValidationService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type serviceMetrics struct {
	runs     metric.Int64Counter
	defects  metric.Int64Counter
	duration metric.Float64Histogram
}

func newServiceMetrics(meter metric.Meter) (*serviceMetrics, error) {
	runs, err := meter.Int64Counter("alchemist.validation.runs",
		metric.WithDescription("Number of validation runs"))
	if err != nil {
		return nil, err
	}
	defects, err := meter.Int64Counter("alchemist.validation.defects",
		metric.WithDescription("Defects reported, by severity"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("alchemist.validation.duration",
		metric.WithDescription("Validation run duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &serviceMetrics{runs: runs, defects: defects, duration: duration}, nil
}

func (m *serviceMetrics) record(ctx context.Context, r *models.ValidationResult, elapsed time.Duration) {
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.Bool("exportable", r.Summary.Exportable)))
	for sev, n := range map[models.Severity]int{
		models.SeverityError:   r.Summary.Errors,
		models.SeverityWarning: r.Summary.Warnings,
		models.SeverityInfo:    r.Summary.Info,
	} {
		if n > 0 {
			m.defects.Add(ctx, int64(n), metric.WithAttributes(attribute.String("severity", string(sev))))
		}
	}
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000)
}
