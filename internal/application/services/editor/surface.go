package editor

import (
	"fmt"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
)

// Surface names the block list a session edits.
type Surface struct {
	Kind string `json:"kind"`
	Slug string `json:"slug,omitempty"`
}

func (s Surface) Validate() error {
	if !content.ValidSurfaceKind(s.Kind) {
		return fmt.Errorf("%w: kind %q", ErrInvalidSurface, s.Kind)
	}
	if s.Kind == content.SurfacePage && s.Slug == "" {
		return fmt.Errorf("%w: page surface needs a slug", ErrInvalidSurface)
	}
	return nil
}

// Key is the preferences key of the surface.
func (s Surface) Key() string {
	return content.SurfaceKey(s.Kind, s.Slug)
}

// Field is the document field the surface's blocks are saved under.
func (s Surface) Field() string {
	switch s.Kind {
	case content.SurfaceHeader:
		return blocks.FieldHeaderContent
	case content.SurfaceFooter:
		return blocks.FieldFooterContent
	}
	return blocks.FieldPages
}

// blocksOf returns the surface's root list within doc.
func (s Surface) blocksOf(doc *blocks.SiteDocument) ([]*blocks.Block, error) {
	switch s.Kind {
	case content.SurfaceHeader:
		return doc.HeaderContent, nil
	case content.SurfaceFooter:
		return doc.FooterContent, nil
	}
	idx := doc.PageBySlug(s.Slug)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, s.Slug)
	}
	return doc.Pages[idx].Blocks, nil
}
