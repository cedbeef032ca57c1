package main

import (
	"context"
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

	"github.com/tomaskovarik271/pipecrm/internal/api"
	"github.com/tomaskovarik271/pipecrm/internal/auth"
	"github.com/tomaskovarik271/pipecrm/internal/config"
	"github.com/tomaskovarik271/pipecrm/internal/logging"
	"github.com/tomaskovarik271/pipecrm/internal/mcp"
	"github.com/tomaskovarik271/pipecrm/internal/repository"
	"github.com/tomaskovarik271/pipecrm/internal/services"
	devtls "github.com/tomaskovarik271/pipecrm/internal/tls"
)

func main() {
	var configPath string
	var migrate bool

	rootCmd := &cobra.Command{
		Use:   "pipecrm-server",
		Short: "Lead and deal conversion service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, migrate)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.Flags().BoolVar(&migrate, "migrate", false, "Apply database schema before serving")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, migrate bool) error {
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"dev_bypass", cfg.DevModeBypass,
		"deal_project_type", cfg.Conversion.DealProjectTypeName,
		"lead_project_type", cfg.Conversion.LeadProjectTypeName,
	)

	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer pool.Close()
	logger.Info("Database connected")

	repo := repository.NewPostgresRepository(pool, logger)
	if migrate {
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		logger.Info("Schema applied")
	}

	converter := services.NewConversionService(repo, cfg.Conversion, logger)
	logger.Info("Service layer initialized")

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("pipecrm"))

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize auth: %w", err)
	}

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	apiServer := api.NewServer(converter, repo, logger)
	e.GET("/health", apiServer.HandleHealth)

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	apiServer.RegisterRoutes(apiGroup)
	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(converter)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(authz.RequireAuth(mcpHandlers)))
	logger.Info("MCP protocol handlers mounted")

	addr := ":8080"
	if cfg.TLS.Enable {
		addr = ":8443"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				serverErrors <- fmt.Errorf("tls enabled but cert/key file not provided")
				return
			}
			if len(cfg.TLS.Hostnames) > 0 {
				if err := devtls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
					logger.Error("failed to ensure self-signed cert", "error", err)
				}
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
