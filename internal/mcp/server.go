package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"data-alchemist/backend/internal/auth"
	"data-alchemist/backend/internal/repository"
	"data-alchemist/backend/internal/services"
	"data-alchemist/backend/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Service is the part of the validation service exposed as tools.
type Service interface {
	Validate(ctx context.Context, records models.Records) (*models.ValidationResult, error)
	ValidateDataset(ctx context.Context, owner, id string) (*models.ValidationResult, error)
	Export(ctx context.Context, owner, id string) (*models.ExportBundle, error)
}

type Server struct {
	mcpServer *server.MCPServer
	service   Service
}

func NewServer(service Service) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Data Alchemist",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		service: service,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_records",
			mcp.WithDescription("Validate client, worker and task records and list every defect found"),
			mcp.WithString("clients", mcp.Description("Clients as a JSON array")),
			mcp.WithString("workers", mcp.Description("Workers as a JSON array")),
			mcp.WithString("tasks", mcp.Description("Tasks as a JSON array")),
		),
		s.handleValidateRecords,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_dataset",
			mcp.WithDescription("Validate a stored dataset and keep the result"),
			mcp.WithString("dataset_id", mcp.Required(), mcp.Description("The ID of the dataset")),
		),
		s.handleValidateDataset,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"export_readiness",
			mcp.WithDescription("Report whether a stored dataset can be exported to the allocator"),
			mcp.WithString("dataset_id", mcp.Required(), mcp.Description("The ID of the dataset")),
		),
		s.handleExportReadiness,
	)
}

// decodeCollection accepts a collection as a JSON string or as an already
// decoded array.
func decodeCollection(args map[string]interface{}, name string, dest any) error {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data = b
	}
	return json.Unmarshal(data, dest)
}

func (s *Server) handleValidateRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	var records models.Records
	if err := decodeCollection(args, "clients", &records.Clients); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter clients: %v", err)), nil
	}
	if err := decodeCollection(args, "workers", &records.Workers); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter workers: %v", err)), nil
	}
	if err := decodeCollection(args, "tasks", &records.Tasks); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameter tasks: %v", err)), nil
	}

	result, err := s.service.Validate(ctx, records)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to validate: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func datasetArgs(ctx context.Context, request mcp.CallToolRequest) (owner, id string, errResult *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", "", mcp.NewToolResultError("Invalid arguments type")
	}

	id, ok = args["dataset_id"].(string)
	if !ok || id == "" {
		return "", "", mcp.NewToolResultError("Missing required parameter: dataset_id")
	}

	owner, ok = auth.OwnerFromContext(ctx)
	if !ok {
		return "", "", mcp.NewToolResultError("Caller identity not found")
	}
	return owner, id, nil
}

func (s *Server) handleValidateDataset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := datasetArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	result, err := s.service.ValidateDataset(ctx, owner, id)
	if errors.Is(err, repository.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Dataset %s not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to validate dataset: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// ExportReadiness is the result of the export_readiness tool.
type ExportReadiness struct {
	DatasetID  string         `json:"dataset_id"`
	Version    int            `json:"version"`
	Exportable bool           `json:"exportable"`
	Summary    models.Summary `json:"summary"`
}

func (s *Server) handleExportReadiness(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := datasetArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	readiness := ExportReadiness{DatasetID: id}
	bundle, err := s.service.Export(ctx, owner, id)
	var blocked *services.ExportBlockedError
	switch {
	case errors.As(err, &blocked):
		readiness.Version = blocked.Version
		readiness.Summary = blocked.Summary
	case errors.Is(err, repository.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("Dataset %s not found", id)), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check export: %v", err)), nil
	default:
		readiness.Version = bundle.Dataset.Version
		readiness.Summary = bundle.Result.Summary
		readiness.Exportable = true
	}

	jsonBytes, _ := json.Marshal(readiness)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MountHTTPHandlers serves the SSE transport under /mcp. The caller identity
// set by the auth middleware is carried into tool calls.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if owner, ok := auth.OwnerFromContext(r.Context()); ok {
				return auth.WithOwner(ctx, owner)
			}
			return ctx
		}),
	)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
