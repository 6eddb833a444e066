// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/container"
	"github.com/AtRiskMedia/kendr-go/internal/application/services/editor"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	tables "github.com/AtRiskMedia/kendr-go/internal/infrastructure/database"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/kendr-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/kendr-go/pkg/config"
	"github.com/gin-gonic/gin"
)

const defaultSiteName = "My Site"

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal arrives.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	log.Println("\033[32m" + `

 ██  ██ ▄▄▄▄▄ ▄▄  ▄▄ ▄▄▄▄   ▄▄▄▄
 ██▄█▀  ██▄▄  ███▄██ ██ ▀█ ██▄▄▀
 ██ ▀█▄ ██▄▄▄ ██ ▀██ ██▄█▀ ██ ▀█▄
` + "\033[97m" + `
  made by At Risk Media
` + "\033[0m")

	// Step 1: Channeled logger
	log.Println("Initializing logger...")
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToConsole: true,
		LogDirectory:    config.LogDir,
		JSONFormat:      config.LogFormat != "text",
		DefaultLevel:    logging.ParseLevel(config.LogLevel),
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Logger initialized - switching to channeled logging", "level", config.LogLevel, "format", config.LogFormat)

	// Step 2: Block registry
	phaseStart := time.Now()
	registry := blocks.DefaultRegistry()
	if err := registry.Validate(); err != nil {
		logger.LogStartupPhase("registry", time.Since(phaseStart), false)
		return fmt.Errorf("invalid block registry: %w", err)
	}
	logger.LogStartupPhase("registry", time.Since(phaseStart), true)

	// Step 3: Database, schema and starter content
	phaseStart = time.Now()
	if config.TursoDatabaseURL != "" && config.TursoAuthToken != "" {
		if err := database.TestTursoConnectionWithLogger(config.TursoDatabaseURL, config.TursoAuthToken, logger); err != nil {
			logger.LogStartupPhase("database", time.Since(phaseStart), false)
			return fmt.Errorf("turso connectivity check failed: %w", err)
		}
	}
	db, err := database.Open(database.Config{
		SQLitePath:      config.DBPath,
		TursoURL:        config.TursoDatabaseURL,
		TursoToken:      config.TursoAuthToken,
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute,
	}, logger)
	if err != nil {
		logger.LogStartupPhase("database", time.Since(phaseStart), false)
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tableCreator := tables.NewTableCreator()
	if err := tableCreator.CreateSchema(db.DB); err != nil {
		logger.LogStartupPhase("database", time.Since(phaseStart), false)
		return fmt.Errorf("failed to create schema: %w", err)
	}
	seededID, err := tableCreator.SeedInitialContent(db.DB, registry, defaultSiteName)
	if err != nil {
		logger.LogStartupPhase("database", time.Since(phaseStart), false)
		return fmt.Errorf("failed to seed initial content: %w", err)
	}
	if seededID != "" {
		logger.Startup().Info("Seeded starter site", "siteId", seededID, "name", defaultSiteName)
	}
	logger.Startup().Info("Database ready", "backend", db.Info())
	logger.LogStartupPhase("database", time.Since(phaseStart), true)

	// Step 4: Service credentials
	jwtSecret := config.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = security.GenerateSecureKey(32)
		if err != nil {
			return fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		logger.Auth().Warn("KENDR_JWT_SECRET not set - generated an ephemeral secret; tokens will not survive a restart")
	}

	// Step 5: Dependency injection container
	phaseStart = time.Now()
	appContainer := container.NewContainer(db, registry, logger, container.Settings{
		JWTSecret:  jwtSecret,
		BackendURL: config.ResolvedBackendURL(),
		TokenTTL:   config.ServiceTokenTTL,
		Editor: editor.Config{
			Window:    config.AutosaveWindow,
			Timeout:   config.AutosaveTimeout,
			UndoDepth: config.UndoDepth,
		},
		SSEBufferSize:  config.SSEBufferSize,
		AllowedOrigins: config.CORSAllowedOrigins,
	})
	logger.Startup().Info("Dependency injection container created", "backendUrl", appContainer.Settings.BackendURL)
	logger.LogStartupPhase("container", time.Since(phaseStart), true)

	// Step 6: HTTP server
	httpServer := server.New(config.Port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", config.Port)

	// Wait for shutdown signal
	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			return err
		}
	}

	shutdownStart := time.Now()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
