package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// DefectsParams defines parameters for GetDatasetDefects.
type DefectsParams struct {
	// Severity keeps only defects of this severity.
	Severity *string `form:"severity,omitempty" json:"severity,omitempty"`
	// Entity keeps only defects of this collection.
	Entity *string `form:"entity,omitempty" json:"entity,omitempty"`
}

// ServerInterface represents all server handlers of /api/v1.
type ServerInterface interface {
	// (POST /validate)
	ValidateRecords(ctx echo.Context) error
	// (GET /datasets)
	ListDatasets(ctx echo.Context) error
	// (POST /datasets)
	CreateDataset(ctx echo.Context) error
	// (GET /datasets/{datasetId})
	GetDataset(ctx echo.Context, datasetId string) error
	// (PUT /datasets/{datasetId})
	UpdateDataset(ctx echo.Context, datasetId string) error
	// (DELETE /datasets/{datasetId})
	DeleteDataset(ctx echo.Context, datasetId string) error
	// (POST /datasets/{datasetId}/validate)
	ValidateDataset(ctx echo.Context, datasetId string) error
	// (GET /datasets/{datasetId}/defects)
	GetDatasetDefects(ctx echo.Context, datasetId string, params DefectsParams) error
	// (GET /datasets/{datasetId}/export)
	ExportDataset(ctx echo.Context, datasetId string) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func bindDatasetID(ctx echo.Context) (string, error) {
	var datasetId string
	err := runtime.BindStyledParameterWithOptions("simple", "datasetId", ctx.Param("datasetId"), &datasetId,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter datasetId: %s", err))
	}
	if datasetId == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Missing required parameter datasetId")
	}
	return datasetId, nil
}

// ValidateRecords converts echo context to params.
func (w *ServerInterfaceWrapper) ValidateRecords(ctx echo.Context) error {
	return w.Handler.ValidateRecords(ctx)
}

// ListDatasets converts echo context to params.
func (w *ServerInterfaceWrapper) ListDatasets(ctx echo.Context) error {
	return w.Handler.ListDatasets(ctx)
}

// CreateDataset converts echo context to params.
func (w *ServerInterfaceWrapper) CreateDataset(ctx echo.Context) error {
	return w.Handler.CreateDataset(ctx)
}

// GetDataset converts echo context to params.
func (w *ServerInterfaceWrapper) GetDataset(ctx echo.Context) error {
	datasetId, err := bindDatasetID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetDataset(ctx, datasetId)
}

// UpdateDataset converts echo context to params.
func (w *ServerInterfaceWrapper) UpdateDataset(ctx echo.Context) error {
	datasetId, err := bindDatasetID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.UpdateDataset(ctx, datasetId)
}

// DeleteDataset converts echo context to params.
func (w *ServerInterfaceWrapper) DeleteDataset(ctx echo.Context) error {
	datasetId, err := bindDatasetID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.DeleteDataset(ctx, datasetId)
}

// ValidateDataset converts echo context to params.
func (w *ServerInterfaceWrapper) ValidateDataset(ctx echo.Context) error {
	datasetId, err := bindDatasetID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.ValidateDataset(ctx, datasetId)
}

// GetDatasetDefects converts echo context to params.
func (w *ServerInterfaceWrapper) GetDatasetDefects(ctx echo.Context) error {
	datasetId, err := bindDatasetID(ctx)
	if err != nil {
		return err
	}

	var params DefectsParams
	err = runtime.BindQueryParameter("form", true, false, "severity", ctx.QueryParams(), &params.Severity)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter severity: %s", err))
	}
	err = runtime.BindQueryParameter("form", true, false, "entity", ctx.QueryParams(), &params.Entity)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter entity: %s", err))
	}

	return w.Handler.GetDatasetDefects(ctx, datasetId, params)
}

// ExportDataset converts echo context to params.
func (w *ServerInterfaceWrapper) ExportDataset(ctx echo.Context) error {
	datasetId, err := bindDatasetID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.ExportDataset(ctx, datasetId)
}

// EchoRouter is satisfied by both *echo.Echo and *echo.Group.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds each server route to the EchoRouter.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	RegisterHandlersWithBaseURL(router, si, "")
}

// RegisterHandlersWithBaseURL registers the routes under baseURL.
func RegisterHandlersWithBaseURL(router EchoRouter, si ServerInterface, baseURL string) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}

	router.POST(baseURL+"/validate", wrapper.ValidateRecords)
	router.GET(baseURL+"/datasets", wrapper.ListDatasets)
	router.POST(baseURL+"/datasets", wrapper.CreateDataset)
	router.GET(baseURL+"/datasets/:datasetId", wrapper.GetDataset)
	router.PUT(baseURL+"/datasets/:datasetId", wrapper.UpdateDataset)
	router.DELETE(baseURL+"/datasets/:datasetId", wrapper.DeleteDataset)
	router.POST(baseURL+"/datasets/:datasetId/validate", wrapper.ValidateDataset)
	router.GET(baseURL+"/datasets/:datasetId/defects", wrapper.GetDatasetDefects)
	router.GET(baseURL+"/datasets/:datasetId/export", wrapper.ExportDataset)
}
