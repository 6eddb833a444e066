// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/container"
	"github.com/AtRiskMedia/kendr-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/kendr-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container, heartbeat time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(container.Settings.AllowedOrigins))

	// Initialize handlers
	siteHandlers := handlers.NewSiteHandlers(container.SiteService, container.LibraryService, container.Logger)
	editorHandlers := handlers.NewEditorHandlers(container.EditorManager, container.Logger)
	streamHandlers := handlers.NewStreamHandlers(container.EditorManager, container.Broadcaster, heartbeat,
		container.Settings.AllowedOrigins, container.Logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"database":  container.DB.Info(),
			"sessions":  container.EditorManager.Count(),
			"uptime":    container.EditorManager.Performance().Uptime().String(),
			"logLevels": container.Logger.GetChannelLevels(),
		})
	})

	r.GET("/health/performance", func(c *gin.Context) {
		perf := container.EditorManager.Performance()
		c.JSON(http.StatusOK, gin.H{
			"operations": perf.Stats(),
			"recent":     perf.Recent(20),
		})
	})

	api := r.Group("/api/v1")
	{
		// Site document backend (bearer token required)
		sites := api.Group("/sites")
		sites.Use(middleware.BearerAuthMiddleware(container.Settings.JWTSecret, container.Logger))
		{
			sites.GET("", siteHandlers.ListSites)
			sites.POST("", siteHandlers.CreateSite)

			site := sites.Group("/:siteId")
			site.Use(middleware.SiteMiddleware(container.SiteService, container.Logger))
			{
				site.GET("", siteHandlers.GetSite)
				site.GET("/document", siteHandlers.GetDocument)
				site.PUT("/document", siteHandlers.PutDocument)
				site.GET("/library", siteHandlers.ListLibrary)
				site.POST("/library", siteHandlers.SaveToLibrary)
				site.DELETE("/library/:id", siteHandlers.DeleteLibraryBlock)
				site.GET("/preferences/:surface", siteHandlers.GetPreferences)
				site.PUT("/preferences/:surface", siteHandlers.PutPreferences)
			}
		}

		// Editor sessions
		sessions := api.Group("/editor/sessions")
		{
			sessions.POST("", editorHandlers.Mount)
			sessions.GET("/:id", editorHandlers.GetSession)
			sessions.DELETE("/:id", editorHandlers.Unmount)

			sessions.POST("/:id/move", editorHandlers.MoveBlock)
			sessions.POST("/:id/blocks", editorHandlers.AddBlock)
			sessions.DELETE("/:id/blocks", editorHandlers.DeleteBlock)
			sessions.PATCH("/:id/blocks/data", editorHandlers.UpdateBlockData)
			sessions.POST("/:id/select", editorHandlers.SelectBlock)
			sessions.POST("/:id/collapse", editorHandlers.ToggleCollapse)

			sessions.POST("/:id/drag/begin", editorHandlers.BeginDrag)
			sessions.POST("/:id/drag/hover", editorHandlers.Hover)
			sessions.POST("/:id/drag/drop", editorHandlers.Drop)
			sessions.POST("/:id/drag/cancel", editorHandlers.CancelDrag)

			sessions.POST("/:id/fields", editorHandlers.SetField)
			sessions.POST("/:id/reload", editorHandlers.Reload)
			sessions.POST("/:id/undo", editorHandlers.Undo)
			sessions.POST("/:id/redo", editorHandlers.Redo)

			sessions.POST("/:id/library", editorHandlers.SaveToLibrary)
			sessions.POST("/:id/library/insert", editorHandlers.InsertFromLibrary)

			sessions.GET("/:id/events", streamHandlers.Events)
			sessions.GET("/:id/ws", streamHandlers.WebSocket)
		}
	}

	return r
}
