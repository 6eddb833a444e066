package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire field names of a site document.
const (
	FieldPages         = "pages"
	FieldHeaderContent = "header_content"
	FieldFooterContent = "footer_content"
	FieldThemeSettings = "theme_settings"
)

// Page is one routable page of a site.
type Page struct {
	Slug   string   `json:"slug"`
	Blocks []*Block `json:"blocks"`
}

// SiteDocument is the persisted shape of a site as exchanged with the backend.
type SiteDocument struct {
	Pages         []Page         `json:"pages"`
	HeaderContent []*Block       `json:"header_content"`
	FooterContent []*Block       `json:"footer_content"`
	ThemeSettings map[string]any `json:"theme_settings"`
}

// NewDefaultDocument seeds a fresh site: a header, a home page with a hero and
// an empty footer.
func NewDefaultDocument(registry *Registry, siteName string) (*SiteDocument, error) {
	header, err := registry.NewBlock(TypeHeader, map[string]any{"logo": siteName})
	if err != nil {
		return nil, err
	}
	hero, err := registry.NewBlock(TypeHero, map[string]any{"title": siteName})
	if err != nil {
		return nil, err
	}
	return &SiteDocument{
		Pages:         []Page{{Slug: "home", Blocks: []*Block{hero}}},
		HeaderContent: []*Block{header},
		FooterContent: []*Block{},
		ThemeSettings: map[string]any{"palette": "default", "font": "system"},
	}, nil
}

// PageBySlug returns the index of the page with slug, or -1.
func (d *SiteDocument) PageBySlug(slug string) int {
	for i, p := range d.Pages {
		if p.Slug == slug {
			return i
		}
	}
	return -1
}

// Clone deep-copies the document.
func (d *SiteDocument) Clone() *SiteDocument {
	out := &SiteDocument{
		Pages:         make([]Page, len(d.Pages)),
		HeaderContent: CloneList(d.HeaderContent),
		FooterContent: CloneList(d.FooterContent),
		ThemeSettings: cloneMap(d.ThemeSettings),
	}
	for i, p := range d.Pages {
		out.Pages[i] = Page{Slug: p.Slug, Blocks: CloneList(p.Blocks)}
	}
	return out
}

// ToMap converts the document into its generic JSON form.
func (d *SiteDocument) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode site document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode site document: %w", err)
	}
	return out, nil
}

// DocumentFromMap decodes the generic JSON form of a document.
func DocumentFromMap(m map[string]any) (*SiteDocument, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode site document: %w", err)
	}
	var doc SiteDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode site document: %w", err)
	}
	doc.normalize()
	return &doc, nil
}

func (d *SiteDocument) normalize() {
	if d.Pages == nil {
		d.Pages = []Page{}
	}
	for i := range d.Pages {
		if d.Pages[i].Blocks == nil {
			d.Pages[i].Blocks = []*Block{}
		}
	}
	if d.HeaderContent == nil {
		d.HeaderContent = []*Block{}
	}
	if d.FooterContent == nil {
		d.FooterContent = []*Block{}
	}
	if d.ThemeSettings == nil {
		d.ThemeSettings = map[string]any{}
	}
}

// Validate checks the structural rules the backend enforces on PUT: block
// ids present and unique, types present, page slugs unique, and protected
// (singleton) blocks only in the header list, at most once.
func (d *SiteDocument) Validate(registry *Registry) error {
	var errs []error
	seen := make(map[string]string)
	protected := 0

	check := func(area string, list []*Block, allowProtected bool) {
		walkList(list, Path{}, func(p Path, b *Block) bool {
			where := area + "[" + p.String() + "]"
			if b.BlockID == "" {
				errs = append(errs, fmt.Errorf("%s: block_id is required", where))
			} else if prev, dup := seen[b.BlockID]; dup {
				errs = append(errs, fmt.Errorf("%s: duplicate block_id %s (first at %s)", where, b.BlockID, prev))
			} else {
				seen[b.BlockID] = where
			}
			if b.Type == "" {
				errs = append(errs, fmt.Errorf("%s: type is required", where))
			}
			if registry != nil && registry.IsProtected(b.Type) {
				if !allowProtected || len(p) != 1 {
					errs = append(errs, fmt.Errorf("%s: %s block is only allowed at the top of header_content", where, b.Type))
				} else {
					protected++
				}
			}
			return true
		})
	}

	slugs := make(map[string]bool)
	for i, page := range d.Pages {
		if page.Slug == "" {
			errs = append(errs, fmt.Errorf("pages[%d]: slug is required", i))
		} else if slugs[page.Slug] {
			errs = append(errs, fmt.Errorf("pages[%d]: duplicate slug %q", i, page.Slug))
		}
		slugs[page.Slug] = true
		check(fmt.Sprintf("pages[%d].blocks", i), page.Blocks, false)
	}
	check(FieldHeaderContent, d.HeaderContent, true)
	check(FieldFooterContent, d.FooterContent, false)

	if protected > 1 {
		errs = append(errs, fmt.Errorf("%s: found %d singleton blocks, at most one allowed", FieldHeaderContent, protected))
	}
	return errors.Join(errs...)
}
