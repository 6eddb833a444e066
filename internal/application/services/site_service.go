// Package services provides application-level services that orchestrate
// business logic and coordinate between repositories and domain entities.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/domain/repositories"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/security"
)

var (
	ErrEmptySiteName   = errors.New("site name cannot be empty")
	ErrInvalidDocument = errors.New("invalid site document")
	ErrInvalidSurface  = errors.New("invalid preferences surface")
)

// SiteService orchestrates sites, their documents and editor preferences.
type SiteService struct {
	siteRepo  repositories.SiteRepository
	docRepo   repositories.DocumentRepository
	prefsRepo repositories.PreferencesRepository
	registry  *blocks.Registry
	logger    *logging.ChanneledLogger
}

func NewSiteService(
	siteRepo repositories.SiteRepository,
	docRepo repositories.DocumentRepository,
	prefsRepo repositories.PreferencesRepository,
	registry *blocks.Registry,
	logger *logging.ChanneledLogger,
) *SiteService {
	return &SiteService{
		siteRepo:  siteRepo,
		docRepo:   docRepo,
		prefsRepo: prefsRepo,
		registry:  registry,
		logger:    logger,
	}
}

func (s *SiteService) List(ctx context.Context) ([]*content.Site, error) {
	sites, err := s.siteRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

func (s *SiteService) Get(ctx context.Context, id string) (*content.Site, error) {
	if id == "" {
		return nil, fmt.Errorf("site ID cannot be empty")
	}
	site, err := s.siteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get site %s: %w", id, err)
	}
	return site, nil
}

// Create stores a new site with the starter document.
func (s *SiteService) Create(ctx context.Context, name string) (*content.Site, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptySiteName
	}
	doc, err := blocks.NewDefaultDocument(s.registry, name)
	if err != nil {
		return nil, fmt.Errorf("failed to build starter document: %w", err)
	}

	site := &content.Site{
		ID:      security.GenerateULID(),
		Name:    name,
		Created: time.Now().UTC(),
	}
	if err := s.siteRepo.Create(ctx, site, doc); err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}
	s.logger.Content().Info("Site created", "siteId", site.ID, "name", name)
	return site, nil
}

func (s *SiteService) GetDocument(ctx context.Context, siteID string) (*blocks.SiteDocument, error) {
	doc, err := s.docRepo.Find(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document for site %s: %w", siteID, err)
	}
	return doc, nil
}

// SaveDocument validates and replaces a site's document, returning what was
// stored and its new revision.
func (s *SiteService) SaveDocument(ctx context.Context, siteID string, doc *blocks.SiteDocument) (*blocks.SiteDocument, int, error) {
	if doc == nil {
		return nil, 0, fmt.Errorf("%w: document is required", ErrInvalidDocument)
	}
	if err := doc.Validate(s.registry); err != nil {
		s.logger.Content().Warn("Rejected document", "siteId", siteID, "error", err.Error())
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	revision, err := s.docRepo.Save(ctx, siteID, doc)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to save document for site %s: %w", siteID, err)
	}
	s.logger.Content().Debug("Document saved", "siteId", siteID, "revision", revision)
	stored, err := s.docRepo.Find(ctx, siteID)
	if err != nil {
		return nil, 0, err
	}
	return stored, revision, nil
}

// GetPreferences returns the stored preferences of a surface, or an empty set.
func (s *SiteService) GetPreferences(ctx context.Context, siteID, surface string) (*content.EditorPreferences, error) {
	if err := validateSurfaceKey(surface); err != nil {
		return nil, err
	}
	prefs, err := s.prefsRepo.Find(ctx, siteID, surface)
	if errors.Is(err, repositories.ErrNotFound) {
		return &content.EditorPreferences{SiteID: siteID, Surface: surface, Collapsed: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

func (s *SiteService) SavePreferences(ctx context.Context, siteID, surface string, collapsed []string) (*content.EditorPreferences, error) {
	if err := validateSurfaceKey(surface); err != nil {
		return nil, err
	}
	if _, err := s.siteRepo.FindByID(ctx, siteID); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	if collapsed == nil {
		collapsed = []string{}
	}
	now := time.Now().UTC()
	prefs := &content.EditorPreferences{SiteID: siteID, Surface: surface, Collapsed: collapsed, Changed: &now}
	if err := s.prefsRepo.Save(ctx, prefs); err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return prefs, nil
}

// validateSurfaceKey accepts "header", "footer" and "page:<slug>".
func validateSurfaceKey(key string) error {
	kind, slug, hasSlug := strings.Cut(key, ":")
	if !content.ValidSurfaceKind(kind) {
		return fmt.Errorf("%w: %q", ErrInvalidSurface, key)
	}
	if (kind == content.SurfacePage) != (hasSlug && slug != "") {
		return fmt.Errorf("%w: %q", ErrInvalidSurface, key)
	}
	return nil
}
