package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/domain/repositories"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

const siteKey = "site"

// SiteLookup resolves a site by id.
type SiteLookup interface {
	Get(ctx context.Context, id string) (*content.Site, error)
}

// SiteMiddleware resolves the :siteId route parameter and stores the site in
// the gin context. Unknown sites end the request with 404.
func SiteMiddleware(sites SiteLookup, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		siteID := c.Param("siteId")
		if siteID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site ID is required"})
			c.Abort()
			return
		}

		site, err := sites.Get(c.Request.Context(), siteID)
		if errors.Is(err, repositories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
			c.Abort()
			return
		}
		if err != nil {
			logger.Content().Error("Site resolution failed", "error", err.Error(), "siteId", siteID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		logger.Content().Debug("Site resolved", "siteId", siteID, "duration", time.Since(start))
		c.Set(siteKey, site)
		c.Next()
	}
}

// GetSite retrieves the resolved site from gin context.
func GetSite(c *gin.Context) (*content.Site, bool) {
	v, exists := c.Get(siteKey)
	if !exists {
		return nil, false
	}
	site, ok := v.(*content.Site)
	return site, ok
}
