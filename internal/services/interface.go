package services

import (
	"context"
	"errors"
	"fmt"

	"data-alchemist/backend/pkg/models"
)

// ErrExportBlocked is returned when a dataset still has error defects.
var ErrExportBlocked = errors.New("export blocked by error defects")

// ExportBlockedError carries the dataset version and the summary of the
// result that blocked export.
type ExportBlockedError struct {
	Version int
	Summary models.Summary
}

func (e *ExportBlockedError) Error() string {
	return fmt.Sprintf("export blocked: %d error defects", e.Summary.Errors)
}

func (e *ExportBlockedError) Unwrap() error {
	return ErrExportBlocked
}

// Suggestion is an extra finding returned by the advisor.
type Suggestion struct {
	Entity   models.EntityKind `json:"entity"`
	EntityID string            `json:"entityId"`
	Field    string            `json:"field"`
	Message  string            `json:"message"`
}

// Advisor is an external text-generation service that reviews records after
// the rule battery has run.
type Advisor interface {
	// Review returns additional findings for the records. Defects already
	// found by the engine are passed along as context.
	Review(ctx context.Context, records models.Records, defects []models.Defect) ([]Suggestion, error)
}

// NoopAdvisor never suggests anything.
type NoopAdvisor struct{}

// Review returns no suggestions.
func (NoopAdvisor) Review(context.Context, models.Records, []models.Defect) ([]Suggestion, error) {
	return nil, nil
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
