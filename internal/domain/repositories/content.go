// Package repositories defines the repository interfaces for site entities.
// These repositories abstract the data persistence details, ensuring the core
// application is clean and decoupled from the database.
package repositories

import (
	"context"
	"errors"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("conflicting row")
)

type SiteRepository interface {
	FindByID(ctx context.Context, id string) (*content.Site, error)
	FindAll(ctx context.Context) ([]*content.Site, error)
	// Create stores the site together with its seeded document.
	Create(ctx context.Context, site *content.Site, doc *blocks.SiteDocument) error
}

type DocumentRepository interface {
	Find(ctx context.Context, siteID string) (*blocks.SiteDocument, error)
	// Save replaces the document and returns the new revision.
	Save(ctx context.Context, siteID string, doc *blocks.SiteDocument) (int, error)
}

type LibraryRepository interface {
	FindAll(ctx context.Context, siteID string) ([]*content.SavedBlock, error)
	FindByID(ctx context.Context, siteID, id string) (*content.SavedBlock, error)
	Store(ctx context.Context, saved *content.SavedBlock) error
	Delete(ctx context.Context, siteID, id string) error
}

type PreferencesRepository interface {
	Find(ctx context.Context, siteID, surface string) (*content.EditorPreferences, error)
	Save(ctx context.Context, prefs *content.EditorPreferences) error
}
