// Package handlers provides HTTP handlers for the site document backend and
// the editor session surface.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/services"
	"github.com/AtRiskMedia/kendr-go/internal/application/services/library"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/restclient"
	"github.com/AtRiskMedia/kendr-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// CreateSiteRequest defines the structure for creating a new site.
type CreateSiteRequest struct {
	Name string `json:"name" binding:"required"`
}

// SiteHandlers contains the site document backend handlers
type SiteHandlers struct {
	siteService    *services.SiteService
	libraryService *library.Service
	logger         *logging.ChanneledLogger
}

// NewSiteHandlers creates site handlers with injected dependencies
func NewSiteHandlers(siteService *services.SiteService, libraryService *library.Service, logger *logging.ChanneledLogger) *SiteHandlers {
	return &SiteHandlers{
		siteService:    siteService,
		libraryService: libraryService,
		logger:         logger,
	}
}

// ListSites returns every site
func (h *SiteHandlers) ListSites(c *gin.Context) {
	start := time.Now()
	sites, err := h.siteService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Content().Info("List sites request completed", "count", len(sites), "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"sites": sites,
		"count": len(sites),
	})
}

// CreateSite stores a new site with a starter document
func (h *SiteHandlers) CreateSite(c *gin.Context) {
	var req CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	site, err := h.siteService.Create(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	if principal, ok := middleware.GetPrincipal(c); ok {
		h.logger.Auth().Info("Site created by service caller", "siteId", site.ID, "subject", principal.Subject)
	}
	c.JSON(http.StatusCreated, site)
}

// GetSite returns the site resolved by the site middleware
func (h *SiteHandlers) GetSite(c *gin.Context) {
	site, ok := middleware.GetSite(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "site context not found"})
		return
	}
	c.JSON(http.StatusOK, site)
}

// GetDocument returns a site's full document
func (h *SiteHandlers) GetDocument(c *gin.Context) {
	siteID := c.Param("siteId")
	doc, err := h.siteService.GetDocument(c.Request.Context(), siteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// PutDocument replaces a site's document and returns what was stored
func (h *SiteHandlers) PutDocument(c *gin.Context) {
	start := time.Now()
	siteID := c.Param("siteId")

	var doc blocks.SiteDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	stored, revision, err := h.siteService.SaveDocument(c.Request.Context(), siteID, &doc)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Content().Info("Document saved", "siteId", siteID, "revision", revision, "duration", time.Since(start))
	c.Header("X-Document-Revision", strconv.Itoa(revision))
	c.JSON(http.StatusOK, stored)
}

// ListLibrary returns a site's saved blocks
func (h *SiteHandlers) ListLibrary(c *gin.Context) {
	saved, err := h.libraryService.List(c.Request.Context(), c.Param("siteId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"blocks": saved,
		"count":  len(saved),
	})
}

// SaveToLibrary stores a block under a unique name
func (h *SiteHandlers) SaveToLibrary(c *gin.Context) {
	var req restclient.SaveToLibraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	saved, err := h.libraryService.Save(c.Request.Context(), c.Param("siteId"), req.Name, req.Block)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// DeleteLibraryBlock removes a saved block
func (h *SiteHandlers) DeleteLibraryBlock(c *gin.Context) {
	if err := h.libraryService.Delete(c.Request.Context(), c.Param("siteId"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "saved block deleted"})
}

// GetPreferences returns the editor preferences of one surface
func (h *SiteHandlers) GetPreferences(c *gin.Context) {
	prefs, err := h.siteService.GetPreferences(c.Request.Context(), c.Param("siteId"), c.Param("surface"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// PutPreferences replaces the editor preferences of one surface
func (h *SiteHandlers) PutPreferences(c *gin.Context) {
	var req restclient.PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	prefs, err := h.siteService.SavePreferences(c.Request.Context(), c.Param("siteId"), c.Param("surface"), req.Collapsed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}
