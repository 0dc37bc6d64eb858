package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"data-alchemist/backend/internal/auth"
	"data-alchemist/backend/internal/repository"
	"data-alchemist/backend/internal/services"
	"data-alchemist/backend/pkg/models"
)

var _ ServerInterface = (*Handler)(nil)

// DatasetInput is the body of dataset create and update requests.
type DatasetInput struct {
	Name string `json:"name"`
	models.Records
}

// DatasetSummary is a list entry without the record collections.
type DatasetSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Clients   int    `json:"clients"`
	Workers   int    `json:"workers"`
	Tasks     int    `json:"tasks"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func owner(c echo.Context) (string, error) {
	email, ok := auth.OwnerFromContext(c.Request().Context())
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "caller identity not found in context")
	}
	return email, nil
}

// mapError turns service errors into HTTP errors. Anything unknown is
// passed through for the error handler to log.
func mapError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("dataset")
	default:
		return err
	}
}

// ValidateRecords validates posted records without storing them
// (POST /api/v1/validate)
func (h *Handler) ValidateRecords(c echo.Context) error {
	var records models.Records
	if err := c.Bind(&records); err != nil {
		return badRequest("Invalid request body", err)
	}

	result, err := h.svc.Validate(c.Request().Context(), records)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ListDatasets returns the caller's datasets
// (GET /api/v1/datasets)
func (h *Handler) ListDatasets(c echo.Context) error {
	email, err := owner(c)
	if err != nil {
		return err
	}

	datasets, err := h.svc.ListDatasets(c.Request().Context(), email)
	if err != nil {
		return err
	}

	out := make([]DatasetSummary, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, DatasetSummary{
			ID:        ds.ID,
			Name:      ds.Name,
			Version:   ds.Version,
			Clients:   len(ds.Clients),
			Workers:   len(ds.Workers),
			Tasks:     len(ds.Tasks),
			CreatedAt: ds.CreatedAt.Format(time.RFC3339),
			UpdatedAt: ds.UpdatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// CreateDataset stores an uploaded dataset
// (POST /api/v1/datasets)
func (h *Handler) CreateDataset(c echo.Context) error {
	email, err := owner(c)
	if err != nil {
		return err
	}

	var in DatasetInput
	if err := c.Bind(&in); err != nil {
		return badRequest("Invalid request body", err)
	}
	if in.Name == "" {
		return badRequest("Missing required field: name", nil)
	}

	ds, err := h.svc.CreateDataset(c.Request().Context(), email, in.Name, in.Records)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, c.Request().URL.Path+"/"+ds.ID)
	return c.JSON(http.StatusCreated, ds)
}

// GetDataset returns one dataset
// (GET /api/v1/datasets/{datasetId})
func (h *Handler) GetDataset(c echo.Context, datasetId string) error {
	email, err := owner(c)
	if err != nil {
		return err
	}

	ds, err := h.svc.GetDataset(c.Request().Context(), email, datasetId)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ds)
}

// UpdateDataset replaces the records of a dataset
// (PUT /api/v1/datasets/{datasetId})
func (h *Handler) UpdateDataset(c echo.Context, datasetId string) error {
	email, err := owner(c)
	if err != nil {
		return err
	}

	var in DatasetInput
	if err := c.Bind(&in); err != nil {
		return badRequest("Invalid request body", err)
	}

	ds, err := h.svc.UpdateDataset(c.Request().Context(), email, datasetId, in.Name, in.Records)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ds)
}

// DeleteDataset removes a dataset
// (DELETE /api/v1/datasets/{datasetId})
func (h *Handler) DeleteDataset(c echo.Context, datasetId string) error {
	email, err := owner(c)
	if err != nil {
		return err
	}

	if err := h.svc.DeleteDataset(c.Request().Context(), email, datasetId); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ValidateDataset validates the stored dataset and records the result
// (POST /api/v1/datasets/{datasetId}/validate)
func (h *Handler) ValidateDataset(c echo.Context, datasetId string) error {
	email, err := owner(c)
	if err != nil {
		return err
	}

	result, err := h.svc.ValidateDataset(c.Request().Context(), email, datasetId)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetDatasetDefects returns the defects of the latest result, optionally
// filtered by severity and entity
// (GET /api/v1/datasets/{datasetId}/defects)
func (h *Handler) GetDatasetDefects(c echo.Context, datasetId string, params DefectsParams) error {
	email, err := owner(c)
	if err != nil {
		return err
	}

	var severity models.Severity
	if params.Severity != nil {
		severity = models.Severity(*params.Severity)
		if severity.Rank() == 0 {
			return badRequest("Invalid severity: "+*params.Severity, nil)
		}
	}
	var entity models.EntityKind
	if params.Entity != nil {
		entity = models.EntityKind(*params.Entity)
		switch entity {
		case models.EntityClients, models.EntityWorkers, models.EntityTasks, models.EntitySystem:
		default:
			return badRequest("Invalid entity: "+*params.Entity, nil)
		}
	}

	if _, err := h.svc.GetDataset(c.Request().Context(), email, datasetId); err != nil {
		return mapError(err)
	}
	result, err := h.svc.LatestResult(c.Request().Context(), email, datasetId)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("validation result")
	}
	if err != nil {
		return err
	}

	defects := make([]models.Defect, 0, len(result.Defects))
	for _, d := range result.Defects {
		if severity != "" && d.Severity != severity {
			continue
		}
		if entity != "" && d.Entity != entity {
			continue
		}
		defects = append(defects, d)
	}
	return c.JSON(http.StatusOK, defects)
}

// ExportDataset returns the dataset and its result when no error defects
// remain. Blocked exports get a 409 problem carrying the summary.
// (GET /api/v1/datasets/{datasetId}/export)
func (h *Handler) ExportDataset(c echo.Context, datasetId string) error {
	email, err := owner(c)
	if err != nil {
		return err
	}

	bundle, err := h.svc.Export(c.Request().Context(), email, datasetId)
	var blocked *services.ExportBlockedError
	switch {
	case errors.As(err, &blocked):
		summary := blocked.Summary
		return writeProblem(c, ProblemDetails{
			Title:   "Export blocked",
			Status:  http.StatusConflict,
			Detail:  blocked.Error(),
			Summary: &summary,
		})
	case err != nil:
		return mapError(err)
	}
	return c.JSON(http.StatusOK, bundle)
}
