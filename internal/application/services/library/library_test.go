package library

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/domain/repositories"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
)

type memoryRepo struct {
	mu    sync.Mutex
	items []*content.SavedBlock
	// conflict forces Store to fail as if another writer won the name.
	conflict bool
}

func (m *memoryRepo) FindAll(_ context.Context, siteID string) ([]*content.SavedBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*content.SavedBlock
	for _, s := range m.items {
		if s.SiteID == siteID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryRepo) FindByID(_ context.Context, siteID, id string) (*content.SavedBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.items {
		if s.SiteID == siteID && s.ID == id {
			return s, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryRepo) Store(_ context.Context, saved *content.SavedBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflict {
		return repositories.ErrConflict
	}
	m.items = append(m.items, saved)
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, siteID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.items {
		if s.SiteID == siteID && s.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func sampleBlock() *blocks.Block {
	return &blocks.Block{
		BlockID: "orig", Type: blocks.TypeLayout, Data: map[string]any{"gap": float64(8)},
		Children: []*blocks.Block{
			{BlockID: "child", Type: blocks.TypeText, Data: map[string]any{"content": "hi"}},
		},
	}
}

func TestValidateName(t *testing.T) {
	existing := []*content.SavedBlock{{Name: "Promo Row"}}

	if _, err := ValidateName("   ", existing); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank name err = %v", err)
	}
	if _, err := ValidateName(" promo row", existing); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate name err = %v", err)
	}
	got, err := ValidateName("  Footer links ", existing)
	if err != nil || got != "Footer links" {
		t.Errorf("ValidateName = %q, %v", got, err)
	}
}

func TestService_SaveValidatesBeforeStoring(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, logging.NewDiscardLogger())
	ctx := context.Background()

	saved, err := svc.Save(ctx, "site-a", " Promo ", sampleBlock())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Name != "Promo" || saved.ID == "" {
		t.Fatalf("saved = %+v", saved)
	}

	if _, err := svc.Save(ctx, "site-a", "PROMO", sampleBlock()); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := svc.Save(ctx, "site-a", "", sampleBlock()); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("empty err = %v", err)
	}
	if len(repo.items) != 1 {
		t.Fatalf("stored %d items, want 1", len(repo.items))
	}

	repo.conflict = true
	if _, err := svc.Save(ctx, "site-a", "Race", sampleBlock()); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("store conflict err = %v, want ErrDuplicateName", err)
	}
}

func TestService_SaveCopiesBlock(t *testing.T) {
	svc := NewService(&memoryRepo{}, logging.NewDiscardLogger())
	b := sampleBlock()
	b.LibraryOriginID = "older-entry"

	saved, err := svc.Save(context.Background(), "site-a", "Copy", b)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b.Data["gap"] = float64(99)
	if saved.Block.Data["gap"] != float64(8) {
		t.Fatal("saved block aliases the source")
	}
	if saved.Block.LibraryOriginID != "" {
		t.Fatal("library entries must not carry an origin id")
	}
}

func TestInstantiate_ReidentifiesSubtree(t *testing.T) {
	saved := &content.SavedBlock{ID: "lib-1", Block: sampleBlock()}

	a := Instantiate(saved)
	b := Instantiate(saved)

	if a.BlockID == "orig" || a.Children[0].BlockID == "child" {
		t.Fatal("instance kept the saved ids")
	}
	if a.BlockID == b.BlockID || a.Children[0].BlockID == b.Children[0].BlockID {
		t.Fatal("two instances share ids")
	}
	if a.LibraryOriginID != "lib-1" {
		t.Fatalf("origin = %q", a.LibraryOriginID)
	}
	if a.Children[0].LibraryOriginID != "" {
		t.Fatal("only the top-level instance carries the origin id")
	}
	if saved.Block.BlockID != "orig" {
		t.Fatal("Instantiate mutated the saved block")
	}
}
