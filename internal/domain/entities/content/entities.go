// Package content defines the site-level domain entities stored by the backend.
package content

import (
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
)

// Editing surfaces of a site document.
const (
	SurfacePage   = "page"
	SurfaceHeader = "header"
	SurfaceFooter = "footer"
)

type Site struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Created   time.Time  `json:"created"`
	Changed   *time.Time `json:"changed,omitempty"`
	Revision  int        `json:"revision"`
	PageCount int        `json:"pageCount"`
}

// SavedBlock is a reusable block kept in a site's library.
type SavedBlock struct {
	ID      string        `json:"id"`
	SiteID  string        `json:"siteId"`
	Name    string        `json:"name"`
	Block   *blocks.Block `json:"block"`
	Created time.Time     `json:"created"`
}

// EditorPreferences holds per-surface UI state such as collapsed blocks.
// It never affects the persisted document.
type EditorPreferences struct {
	SiteID    string     `json:"siteId"`
	Surface   string     `json:"surface"`
	Collapsed []string   `json:"collapsed"`
	Changed   *time.Time `json:"changed,omitempty"`
}

// SurfaceKey identifies a preferences row: "page:<slug>", "header" or "footer".
func SurfaceKey(kind, slug string) string {
	if kind == SurfacePage {
		return kind + ":" + slug
	}
	return kind
}

func ValidSurfaceKind(kind string) bool {
	switch kind {
	case SurfacePage, SurfaceHeader, SurfaceFooter:
		return true
	}
	return false
}
