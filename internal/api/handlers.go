// Package api contains the HTTP handlers for the validation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"data-alchemist/backend/internal/repository"
	"data-alchemist/backend/pkg/models"
)

const (
	serviceName    = "data-alchemist"
	serviceVersion = "1.0.0"
)

// Service is the part of the validation service the handlers use.
type Service interface {
	Validate(ctx context.Context, records models.Records) (*models.ValidationResult, error)
	CreateDataset(ctx context.Context, owner, name string, records models.Records) (*models.Dataset, error)
	GetDataset(ctx context.Context, owner, id string) (*models.Dataset, error)
	ListDatasets(ctx context.Context, owner string) ([]*models.Dataset, error)
	UpdateDataset(ctx context.Context, owner, id, name string, records models.Records) (*models.Dataset, error)
	DeleteDataset(ctx context.Context, owner, id string) error
	ValidateDataset(ctx context.Context, owner, id string) (*models.ValidationResult, error)
	LatestResult(ctx context.Context, owner, id string) (*models.ValidationResult, error)
	Export(ctx context.Context, owner, id string) (*models.ExportBundle, error)
	Ping(ctx context.Context) error
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handler contains HTTP handlers for the REST API.
type Handler struct {
	svc    Service
	logger Logger
	now    func() time.Time
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(svc Service, logger Logger) *Handler {
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Storage   string    `json:"storage"`
}

// HandleHealth reports service health. It returns 503 when the store is
// unreachable.
func (h *Handler) HandleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:    "ok",
		Timestamp: h.now().UTC(),
		Service:   serviceName,
		Version:   serviceVersion,
		Storage:   "ok",
	}
	code := http.StatusOK
	if err := h.svc.Ping(ctx); err != nil {
		h.logger.Warn("health check: store unreachable", "error", err)
		status.Status = "degraded"
		status.Storage = "unreachable"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
	// Summary is set when an export is blocked by error defects.
	Summary *models.Summary `json:"summary,omitempty"`
}

const problemContentType = "application/problem+json"

// writeProblem writes an RFC 7807 Problem Details JSON error response
func writeProblem(c echo.Context, problem ProblemDetails) error {
	if problem.Type == "" {
		problem.Type = "about:blank"
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	if problem.Instance == "" {
		problem.Instance = c.Request().URL.Path
	}
	body, err := json.Marshal(problem)
	if err != nil {
		return fmt.Errorf("failed to encode problem: %w", err)
	}
	return c.Blob(problem.Status, problemContentType, body)
}

// NewHTTPErrorHandler renders every error returned by a handler as a
// problem document. Unexpected errors are logged and hidden from clients.
func NewHTTPErrorHandler(logger Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		problem := ProblemDetails{Status: http.StatusInternalServerError, Detail: "internal server error"}

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			problem.Status = he.Code
			problem.Detail = fmt.Sprint(he.Message)
			if he.Internal != nil {
				logger.Debug("request rejected", "status", he.Code, "error", he.Internal)
			}
		case errors.Is(err, repository.ErrNotFound):
			problem.Status = http.StatusNotFound
			problem.Detail = "resource not found"
		default:
			logger.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(problem.Status)
		} else {
			err = writeProblem(c, problem)
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}

func badRequest(msg string, err error) *echo.HTTPError {
	he := echo.NewHTTPError(http.StatusBadRequest, msg)
	if err != nil {
		he.Message = msg + ": " + err.Error()
		he.Internal = err
	}
	return he
}

func notFound(what string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, what+" not found")
}
