package blocks

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

var (
	ErrUnknownType   = errors.New("unknown block type")
	ErrDuplicateType = errors.New("block type already registered")
)

// Block type tags shipped with every site.
const (
	TypeHeader      = "header"
	TypeFooter      = "footer"
	TypeHero        = "hero"
	TypeText        = "text"
	TypeImage       = "image"
	TypeGallery     = "gallery"
	TypeLayout      = "layout"
	TypeColumns     = "columns"
	TypeProductList = "product-list"
	TypeContactForm = "contact-form"
	TypeSpacer      = "spacer"
)

var typeNameRE = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// BlockType describes how the editor treats one type tag.
type BlockType struct {
	Name      string         `json:"name"`
	Label     string         `json:"label"`
	Container bool           `json:"container"` // may hold child blocks
	Protected bool           `json:"protected"` // singleton role; never deleted or dragged
	Defaults  map[string]any `json:"defaults,omitempty"`
}

// Registry maps type tags to their BlockType. It replaces scattered
// per-type conditionals with one lookup table.
type Registry struct {
	mu    sync.RWMutex
	types map[string]BlockType
	order []string
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]BlockType)}
}

// Register adds a block type. Names must be unique.
func (r *Registry) Register(t BlockType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Name == "" {
		return fmt.Errorf("block type name cannot be empty")
	}
	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t.Name)
	}
	r.types[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister is Register for static tables.
func (r *Registry) MustRegister(types ...BlockType) *Registry {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Lookup(name string) (BlockType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) IsContainer(name string) bool {
	t, ok := r.Lookup(name)
	return ok && t.Container
}

func (r *Registry) IsProtected(name string) bool {
	t, ok := r.Lookup(name)
	return ok && t.Protected
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []BlockType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BlockType, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// Validate checks the table once at startup.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.types) == 0 {
		return fmt.Errorf("block registry is empty")
	}
	var errs []error
	for _, name := range r.order {
		t := r.types[name]
		if !typeNameRE.MatchString(name) {
			errs = append(errs, fmt.Errorf("block type %q: name must be lowercase kebab-case", name))
		}
		if _, ok := t.Defaults[childrenKey]; ok {
			errs = append(errs, fmt.Errorf("block type %q: defaults must not define %q", name, childrenKey))
		}
		if t.Protected && t.Container {
			errs = append(errs, fmt.Errorf("block type %q: protected types cannot be containers", name))
		}
	}
	return errors.Join(errs...)
}

// NewBlock builds a block of the given type with a fresh id. Preset values
// are layered over a copy of the type defaults.
func (r *Registry) NewBlock(typeName string, preset map[string]any) (*Block, error) {
	t, ok := r.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}

	data := cloneMap(t.Defaults)
	if data == nil {
		data = make(map[string]any)
	}
	for k, v := range preset {
		if k == childrenKey {
			continue
		}
		data[k] = cloneValue(v)
	}

	b := &Block{
		BlockID: newBlockID(),
		Type:    typeName,
		Data:    data,
	}
	if t.Container {
		b.Children = []*Block{}
	}
	return b, nil
}

// DefaultRegistry returns the block palette every site starts with.
func DefaultRegistry() *Registry {
	return NewRegistry().MustRegister(
		BlockType{Name: TypeHeader, Label: "Header", Protected: true, Defaults: map[string]any{
			"logo": "", "links": []any{}, "sticky": false,
		}},
		BlockType{Name: TypeFooter, Label: "Footer", Defaults: map[string]any{
			"text": "", "links": []any{},
		}},
		BlockType{Name: TypeHero, Label: "Hero", Defaults: map[string]any{
			"title": "Welcome", "subtitle": "", "image": "", "align": "center",
		}},
		BlockType{Name: TypeText, Label: "Text", Defaults: map[string]any{
			"content": "",
		}},
		BlockType{Name: TypeImage, Label: "Image", Defaults: map[string]any{
			"src": "", "alt": "",
		}},
		BlockType{Name: TypeGallery, Label: "Gallery", Defaults: map[string]any{
			"images": []any{}, "columns": float64(3),
		}},
		BlockType{Name: TypeLayout, Label: "Layout", Container: true, Defaults: map[string]any{
			"direction": "column", "gap": float64(16),
		}},
		BlockType{Name: TypeColumns, Label: "Columns", Container: true, Defaults: map[string]any{
			"count": float64(2),
		}},
		BlockType{Name: TypeProductList, Label: "Product list", Defaults: map[string]any{
			"categoryId": "", "limit": float64(12), "sort": "newest",
		}},
		BlockType{Name: TypeContactForm, Label: "Contact form", Defaults: map[string]any{
			"fields": []any{"name", "email", "message"}, "submitLabel": "Send",
		}},
		BlockType{Name: TypeSpacer, Label: "Spacer", Defaults: map[string]any{
			"height": float64(32),
		}},
	)
}
