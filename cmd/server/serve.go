package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"data-alchemist/backend/internal/api"
	"data-alchemist/backend/internal/auth"
	"data-alchemist/backend/internal/config"
	"data-alchemist/backend/internal/logging"
	"data-alchemist/backend/internal/mcp"
	"data-alchemist/backend/internal/repository"
	"data-alchemist/backend/internal/services"
	"data-alchemist/backend/internal/tls"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST and MCP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply schema migrations on start")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"storage", cfg.Storage.Driver,
		"okta_domain", cfg.Auth.OktaDomain,
		"swagger_client_id", cfg.Auth.SwaggerClientID,
		"advisor", cfg.Advisor.URL != "",
	)
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client ID matches the backend client ID; PKCE login from /docs will fail if the backend app requires a secret")
	}

	store, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	defer closeStore()

	var advisor services.Advisor
	if cfg.Advisor.URL != "" {
		advisor = services.NewHTTPAdvisor(services.HTTPAdvisorConfig{
			URL:           cfg.Advisor.URL,
			Timeout:       cfg.Advisor.Timeout,
			RatePerSecond: cfg.Advisor.RatePerSecond,
			Burst:         cfg.Advisor.Burst,
			MaxRetries:    cfg.Advisor.MaxRetries,
		})
	}
	validationService, err := services.NewValidationService(store, advisor, logger.With("component", "validation"))
	if err != nil {
		return fmt.Errorf("service initialization failed: %w", err)
	}
	logger.Info("Service layer initialized")

	authz, err := auth.New(ctx, cfg, logger.With("component", "auth"))
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	e := newEcho(cfg, logger, validationService, authz)

	addr := cfg.Server.Address
	if cfg.TLS.Enable {
		addr = cfg.Server.TLSAddress
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if !cfg.TLS.Enable {
			serverErrors <- server.ListenAndServe()
			return
		}
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			serverErrors <- errors.New("TLS enabled but cert/key file not provided")
			return
		}
		if len(cfg.TLS.Hostnames) > 0 {
			created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
			if err != nil {
				serverErrors <- fmt.Errorf("failed to generate self-signed cert: %w", err)
				return
			}
			if created {
				logger.Info("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
			}
		}
		serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
		logger.Info("Server stopped gracefully")
	}
	return nil
}

func newEcho(cfg *config.Config, logger *logging.Logger, svc *services.ValidationService, authz *auth.Auth) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(logger)

	e.Use(otelecho.Middleware("data-alchemist"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.Error("request", append(args, "error", v.Error)...)
				return nil
			}
			logger.Info("request", args...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	apiHandler := api.NewHandler(svc, logger.With("component", "api"))
	e.GET("/health", apiHandler.HandleHealth)

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	api.RegisterHandlers(apiGroup, apiHandler)
	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(svc)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	mcpHandler := echo.WrapHandler(authz.RequireAuth(mcpHandlers))
	e.Any("/mcp", mcpHandler)
	e.Any("/mcp/*", mcpHandler)
	logger.Info("MCP protocol handlers mounted")

	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Auth.OktaDomain)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.Auth.OktaDomain, cfg.Auth.SwaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(api.OAuth2RedirectHandler()))

	return e
}

// initStore opens the configured dataset store. The returned func releases
// it.
func initStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.DatasetStore, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logger.Warn("Using in-memory storage; datasets are lost on restart")
		return repository.NewMemoryDatasetStore(), func() {}, nil
	}

	if !skipMigrations {
		if err := repository.Migrate(cfg.MigrationURL()); err != nil {
			return nil, nil, err
		}
		logger.Info("Database migrations applied")
	}

	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)
	return repository.NewPostgresDatasetStore(pool), pool.Close, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
