// Package container provides dependency injection for all singleton services
package container

import (
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/services"
	"github.com/AtRiskMedia/kendr-go/internal/application/services/editor"
	"github.com/AtRiskMedia/kendr-go/internal/application/services/library"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/persistence/content"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/restclient"
)

// Settings carries the values the container wires into services.
type Settings struct {
	JWTSecret      string
	BackendURL     string
	TokenTTL       time.Duration
	Editor         editor.Config
	SSEBufferSize  int
	AllowedOrigins []string
}

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Document backend
	SiteService    *services.SiteService
	LibraryService *library.Service

	// Editor
	EditorManager *editor.Manager
	Backend       *restclient.Client
	Broadcaster   *messaging.EventBroadcaster

	// Infrastructure Dependencies
	Registry *blocks.Registry
	DB       *database.DB
	Logger   *logging.ChanneledLogger
	Settings Settings
}

// NewContainer creates and wires all singleton services
func NewContainer(db *database.DB, registry *blocks.Registry, logger *logging.ChanneledLogger, settings Settings) *Container {
	siteRepo := content.NewSiteRepository(db.DB, logger)
	docRepo := content.NewDocumentRepository(db.DB, logger)
	libraryRepo := content.NewLibraryRepository(db.DB, logger)
	prefsRepo := content.NewPreferencesRepository(db.DB, logger)

	broadcaster := messaging.NewEventBroadcaster(settings.SSEBufferSize, logger)
	backend := restclient.New(
		settings.BackendURL,
		restclient.ServiceTokens(settings.JWTSecret, settings.TokenTTL),
		nil,
		logger.HTTP(),
	)

	return &Container{
		SiteService:    services.NewSiteService(siteRepo, docRepo, prefsRepo, registry, logger),
		LibraryService: library.NewService(libraryRepo, logger),

		EditorManager: editor.NewManager(settings.Editor, registry, backend, broadcaster, logger),
		Backend:       backend,
		Broadcaster:   broadcaster,

		Registry: registry,
		DB:       db,
		Logger:   logger,
		Settings: settings,
	}
}
