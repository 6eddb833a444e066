package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AtRiskMedia/kendr-go/internal/application/services/library"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
)

var (
	confirmYes = ConfirmFunc(func(string) bool { return true })
	confirmNo  = ConfirmFunc(func(string) bool { return false })
)

func TestMoveBlock_CommitsAndUndoes(t *testing.T) {
	sess, backend, _ := mountHome(t)

	ok, err := sess.MoveBlock(blocks.Path{2}, blocks.Path{0})
	if err != nil || !ok {
		t.Fatalf("MoveBlock = %v, %v", ok, err)
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"c", "a", "b"}) {
		t.Fatalf("after move = %v", got)
	}
	if !sess.IsSaving() {
		t.Fatal("move should schedule a save")
	}

	if !sess.Undo() {
		t.Fatal("Undo returned false")
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"a", "b", "c"}) {
		t.Fatalf("after undo = %v", got)
	}
	if !sess.Redo() {
		t.Fatal("Redo returned false")
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"c", "a", "b"}) {
		t.Fatalf("after redo = %v", got)
	}

	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := backend.lastPageIDs(t); !equalIDs(got, []string{"c", "a", "b"}) {
		t.Fatalf("saved order = %v", got)
	}
}

func TestMoveBlock_InvalidPathIsNoOp(t *testing.T) {
	sess, _, _ := mountHome(t)

	ok, err := sess.MoveBlock(blocks.Path{9}, blocks.Path{0})
	if err != nil || ok {
		t.Fatalf("MoveBlock = %v, %v; want no-op", ok, err)
	}
	if ok, _ := sess.MoveBlock(blocks.Path{2}, blocks.Path{2, 0}); ok {
		t.Fatal("moving a block into itself must be rejected")
	}
	if sess.IsSaving() || sess.View().CanUndo {
		t.Fatal("rejected moves must not schedule saves or undo steps")
	}
}

func TestProtectedHeaderBlock(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, &fakePublisher{})
	sess, err := m.Mount(context.Background(), "site-1", Surface{Kind: content.SurfaceHeader})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	if _, err := sess.MoveBlock(blocks.Path{0}, blocks.Path{1}); !errors.Is(err, ErrProtectedBlock) {
		t.Errorf("move: err = %v", err)
	}
	if _, err := sess.DeleteBlock(blocks.Path{0}, confirmYes); !errors.Is(err, ErrProtectedBlock) {
		t.Errorf("delete: err = %v", err)
	}
	if _, err := sess.AddBlock(nil, blocks.TypeHeader, nil, -1); !errors.Is(err, ErrProtectedBlock) {
		t.Errorf("add: err = %v", err)
	}
	if _, err := sess.BeginDrag(DragSource{Path: blocks.Path{0}}); !errors.Is(err, ErrProtectedBlock) {
		t.Errorf("drag: err = %v", err)
	}

	// Settings of a protected block stay editable.
	if !sess.UpdateBlockData(blocks.Path{0}, map[string]any{"logo": "Store"}) {
		t.Fatal("UpdateBlockData on header should apply")
	}
	if got := sess.View().Blocks[0].Data["logo"]; got != "Store" {
		t.Fatalf("logo = %v", got)
	}
}

func TestAddBlock(t *testing.T) {
	sess, _, _ := mountHome(t)

	b, err := sess.AddBlock(blocks.Path{2}, blocks.TypeText, map[string]any{"content": "new"}, 0)
	if err != nil || b == nil {
		t.Fatalf("AddBlock = %v, %v", b, err)
	}
	kids := sess.View().Blocks[2].Children
	if got := blockIDs(kids); len(got) != 2 || got[0] != b.BlockID || got[1] != "d" {
		t.Fatalf("container children = %v", got)
	}

	// A leaf cannot own children and an unknown type is refused.
	if b, err := sess.AddBlock(blocks.Path{0}, blocks.TypeText, nil, -1); b != nil || err != nil {
		t.Fatalf("add under leaf = %v, %v", b, err)
	}
	if b, err := sess.AddBlock(nil, "marquee", nil, -1); b != nil || err != nil {
		t.Fatalf("add unknown type = %v, %v", b, err)
	}
}

func TestDeleteBlock_RequiresConfirmation(t *testing.T) {
	sess, _, _ := mountHome(t)
	if !sess.SelectBlock(blocks.Path{2, 0}) {
		t.Fatal("SelectBlock failed")
	}
	sess.ToggleCollapse("c")

	if ok, err := sess.DeleteBlock(blocks.Path{2}, confirmNo); ok || err != nil {
		t.Fatalf("declined delete = %v, %v", ok, err)
	}
	if got := rootIDs(sess); len(got) != 3 {
		t.Fatalf("declined delete changed the tree: %v", got)
	}
	if ok, err := sess.DeleteBlock(blocks.Path{2}, nil); ok || err != nil {
		t.Fatalf("delete without confirmer = %v, %v", ok, err)
	}

	if ok, err := sess.DeleteBlock(blocks.Path{2}, confirmYes); !ok || err != nil {
		t.Fatalf("confirmed delete = %v, %v", ok, err)
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"a", "b"}) {
		t.Fatalf("after delete = %v", got)
	}
	if _, ok := sess.SelectedPath(); ok {
		t.Fatal("selection inside the deleted subtree should clear")
	}
	if len(sess.Collapsed()) != 0 {
		t.Fatal("collapse state of the deleted block should clear")
	}
}

func TestSelectionFollowsBlockAcrossMoves(t *testing.T) {
	sess, _, _ := mountHome(t)

	sess.SelectBlock(blocks.Path{0})
	if _, err := sess.MoveBlock(blocks.Path{0}, blocks.Path{2, 1}); err != nil {
		t.Fatalf("MoveBlock: %v", err)
	}
	p, ok := sess.SelectedPath()
	if !ok || !p.Equal(blocks.Path{1, 1}) {
		t.Fatalf("selected path = %v, %v; want 1.1", p, ok)
	}

	if !sess.SelectBlock(nil) {
		t.Fatal("selecting the root should clear")
	}
	if _, ok := sess.SelectedPath(); ok {
		t.Fatal("selection not cleared")
	}
	if sess.SelectBlock(blocks.Path{7}) {
		t.Fatal("selecting a missing path should fail")
	}
}

func TestToggleCollapse(t *testing.T) {
	sess, backend, _ := mountHome(t)

	if collapsed, ok := sess.ToggleCollapse("c"); !ok || !collapsed {
		t.Fatalf("first toggle = %v, %v", collapsed, ok)
	}
	if collapsed, ok := sess.ToggleCollapse("c"); !ok || collapsed {
		t.Fatalf("second toggle = %v, %v", collapsed, ok)
	}
	if _, ok := sess.ToggleCollapse("nope"); ok {
		t.Fatal("unknown block should not toggle")
	}
	if sess.IsSaving() || backend.putCount() != 0 {
		t.Fatal("collapse is UI state and must not save")
	}
}

func TestUndoDepthIsBounded(t *testing.T) {
	sess, _, _ := mountHome(t)

	for i := 0; i < 15; i++ {
		sess.UpdateBlockData(blocks.Path{0}, map[string]any{"content": strings.Repeat("x", i+1)})
	}
	undone := 0
	for sess.Undo() {
		undone++
	}
	if undone != 10 {
		t.Fatalf("undone %d steps, want 10", undone)
	}
	if got := sess.View().Blocks[0].Data["content"]; got != strings.Repeat("x", 5) {
		t.Fatalf("oldest reachable content = %v", got)
	}
}

func TestSetField(t *testing.T) {
	sess, backend, _ := mountHome(t)

	if err := sess.SetField(blocks.FieldPages, nil); !errors.Is(err, ErrReservedField) {
		t.Fatalf("reserved field: err = %v", err)
	}
	if err := sess.SetField(blocks.FieldThemeSettings, map[string]any{"palette": "dark"}); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	theme, _ := backend.puts[len(backend.puts)-1][blocks.FieldThemeSettings].(map[string]any)
	if theme["palette"] != "dark" {
		t.Fatalf("saved theme = %v", theme)
	}
}

func TestSaveToLibrary_ValidatesBeforeRequest(t *testing.T) {
	sess, backend, _ := mountHome(t)
	ctx := context.Background()

	saved, err := sess.SaveToLibrary(ctx, blocks.Path{2}, "  Feature row ")
	if err != nil {
		t.Fatalf("SaveToLibrary: %v", err)
	}
	if saved.Name != "Feature row" {
		t.Fatalf("saved name = %q", saved.Name)
	}

	if _, err := sess.SaveToLibrary(ctx, blocks.Path{0}, "feature ROW"); !errors.Is(err, library.ErrDuplicateName) {
		t.Fatalf("duplicate: err = %v", err)
	}
	if _, err := sess.SaveToLibrary(ctx, blocks.Path{0}, "   "); !errors.Is(err, library.ErrEmptyName) {
		t.Fatalf("empty: err = %v", err)
	}
	if backend.saveCalls != 1 {
		t.Fatalf("backend saw %d save calls, want 1", backend.saveCalls)
	}
	if len(sess.Library()) != 1 {
		t.Fatalf("library size = %d", len(sess.Library()))
	}
}

func TestInsertFromLibrary_CreatesFreshInstance(t *testing.T) {
	sess, _, _ := mountHome(t)
	ctx := context.Background()

	saved, err := sess.SaveToLibrary(ctx, blocks.Path{2}, "Row")
	if err != nil {
		t.Fatalf("SaveToLibrary: %v", err)
	}

	inst, err := sess.InsertFromLibrary(ctx, saved.ID, nil, -1)
	if err != nil || inst == nil {
		t.Fatalf("InsertFromLibrary = %v, %v", inst, err)
	}
	if inst.BlockID == "c" || inst.Children[0].BlockID == "d" {
		t.Fatal("instance must carry fresh ids")
	}
	if inst.LibraryOriginID != saved.ID {
		t.Fatalf("origin = %q, want %q", inst.LibraryOriginID, saved.ID)
	}
	if got := rootIDs(sess); len(got) != 4 || got[3] != inst.BlockID {
		t.Fatalf("root after insert = %v", got)
	}

	if _, err := sess.InsertFromLibrary(ctx, "missing", nil, -1); !errors.Is(err, ErrSavedBlockGone) {
		t.Fatalf("missing saved block: err = %v", err)
	}
}

func TestReload_ReplacesStateFromBackend(t *testing.T) {
	sess, backend, _ := mountHome(t)

	sess.SelectBlock(blocks.Path{1})
	sess.MoveBlock(blocks.Path{0}, blocks.Path{2})

	backend.mu.Lock()
	backend.doc.Pages[0].Blocks = backend.doc.Pages[0].Blocks[:1]
	backend.mu.Unlock()

	if err := sess.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	v := sess.View()
	if got := blockIDs(v.Blocks); !equalIDs(got, []string{"a"}) {
		t.Fatalf("after reload = %v", got)
	}
	if v.CanUndo || v.SelectedPath != nil {
		t.Fatal("reload should reset history and selection of vanished blocks")
	}
}
