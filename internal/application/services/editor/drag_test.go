package editor

import (
	"errors"
	"testing"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
)

// Rows are 40px tall starting at 0, so the midpoint of row i is 40*i+20.
func hoverRow(p blocks.Path, row int, pointerY float64) HoverTarget {
	return HoverTarget{Path: p, Top: float64(40 * row), Height: 40, PointerY: pointerY}
}

func TestHover_DownwardWaitsForMidpoint(t *testing.T) {
	sess, _, _ := mountHome(t)

	if ok, err := sess.BeginDrag(DragSource{Path: blocks.Path{0}}); !ok || err != nil {
		t.Fatalf("BeginDrag = %v, %v", ok, err)
	}
	if moved, _ := sess.Hover(hoverRow(blocks.Path{1}, 1, 55)); moved {
		t.Fatal("pointer above the midpoint must not reorder when dragging down")
	}
	if st := sess.DragStatus(); st.Phase != DragHoverEvaluating || st.Moved {
		t.Fatalf("status = %+v", st)
	}

	moved, err := sess.Hover(hoverRow(blocks.Path{1}, 1, 65))
	if err != nil || !moved {
		t.Fatalf("Hover past midpoint = %v, %v", moved, err)
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"b", "a", "c"}) {
		t.Fatalf("live order = %v", got)
	}
	st := sess.DragStatus()
	if st.Phase != DragReordering || st.Path == nil || *st.Path != "1" {
		t.Fatalf("status after reorder = %+v", st)
	}
	if sess.IsSaving() {
		t.Fatal("live reorders must not autosave")
	}
}

func TestHover_UpwardWaitsForMidpoint(t *testing.T) {
	sess, _, _ := mountHome(t)
	sess.BeginDrag(DragSource{Path: blocks.Path{2}})

	if moved, _ := sess.Hover(hoverRow(blocks.Path{1}, 1, 61)); moved {
		t.Fatal("pointer below the midpoint must not reorder when dragging up")
	}
	if moved, _ := sess.Hover(hoverRow(blocks.Path{1}, 1, 59)); !moved {
		t.Fatal("pointer above the midpoint should reorder")
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"a", "c", "b"}) {
		t.Fatalf("live order = %v", got)
	}
}

func TestHover_DownwardAcrossContainersLandsAfterTarget(t *testing.T) {
	sess, _, _ := mountHome(t)
	sess.BeginDrag(DragSource{Path: blocks.Path{0}})

	// Row 3 is d, the only child of c.
	moved, err := sess.Hover(hoverRow(blocks.Path{2, 0}, 3, 150))
	if err != nil || !moved {
		t.Fatalf("Hover = %v, %v", moved, err)
	}
	v := sess.View()
	if got := blockIDs(v.Blocks); !equalIDs(got, []string{"b", "c"}) {
		t.Fatalf("root = %v", got)
	}
	if got := blockIDs(v.Blocks[1].Children); !equalIDs(got, []string{"d", "a"}) {
		t.Fatalf("container = %v, want the dragged block after the hovered one", got)
	}
}

func TestHover_UpwardAcrossContainersLandsBeforeTarget(t *testing.T) {
	sess, _, _ := mountHome(t)
	sess.BeginDrag(DragSource{Path: blocks.Path{2, 0}})

	if moved, _ := sess.Hover(hoverRow(blocks.Path{1}, 1, 50)); !moved {
		t.Fatal("pointer above the midpoint should reorder")
	}
	v := sess.View()
	if got := blockIDs(v.Blocks); !equalIDs(got, []string{"a", "d", "b", "c"}) {
		t.Fatalf("root = %v", got)
	}
	if len(v.Blocks[3].Children) != 0 {
		t.Fatalf("container should be empty, got %v", blockIDs(v.Blocks[3].Children))
	}
}

func TestHover_IgnoresSelfAndDescendants(t *testing.T) {
	sess, _, _ := mountHome(t)
	sess.BeginDrag(DragSource{Path: blocks.Path{2}})

	if moved, _ := sess.Hover(hoverRow(blocks.Path{2}, 2, 100)); moved {
		t.Fatal("hovering the dragged block itself must not move it")
	}
	if moved, _ := sess.Hover(hoverRow(blocks.Path{2, 0}, 3, 150)); moved {
		t.Fatal("hovering a descendant must not move the block into itself")
	}
	if moved, _ := sess.Hover(hoverRow(blocks.Path{5}, 5, 300)); moved {
		t.Fatal("hovering a missing block must not move anything")
	}
}

func TestDrop_CommitsOneUndoStep(t *testing.T) {
	sess, _, _ := mountHome(t)

	sess.BeginDrag(DragSource{Path: blocks.Path{0}})
	sess.Hover(hoverRow(blocks.Path{1}, 1, 70))
	sess.Hover(hoverRow(blocks.Path{2}, 2, 110))
	if got := rootIDs(sess); !equalIDs(got, []string{"b", "c", "a"}) {
		t.Fatalf("live order = %v", got)
	}

	ok, err := sess.Drop(nil)
	if err != nil || !ok {
		t.Fatalf("Drop = %v, %v", ok, err)
	}
	if st := sess.DragStatus(); st.Phase != DragDropped {
		t.Fatalf("phase = %s", st.Phase)
	}
	if !sess.IsSaving() {
		t.Fatal("drop should schedule a save")
	}

	if !sess.Undo() {
		t.Fatal("Undo after drop returned false")
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"a", "b", "c"}) {
		t.Fatalf("undo should restore the pre-drag order, got %v", got)
	}
	if sess.Undo() {
		t.Fatal("a drop must record exactly one undo step")
	}
}

func TestDrop_AtExplicitTarget(t *testing.T) {
	sess, _, _ := mountHome(t)

	sess.BeginDrag(DragSource{Path: blocks.Path{0}})
	ok, err := sess.Drop(&DropTarget{ParentPath: blocks.Path{2}, Index: 1})
	if err != nil || !ok {
		t.Fatalf("Drop = %v, %v", ok, err)
	}
	v := sess.View()
	if got := blockIDs(v.Blocks); !equalIDs(got, []string{"b", "c"}) {
		t.Fatalf("root = %v", got)
	}
	if got := blockIDs(v.Blocks[1].Children); !equalIDs(got, []string{"d", "a"}) {
		t.Fatalf("container = %v", got)
	}
}

func TestDrop_WithoutTargetOrMovementCancels(t *testing.T) {
	sess, _, _ := mountHome(t)

	sess.BeginDrag(DragSource{Path: blocks.Path{1}})
	ok, err := sess.Drop(nil)
	if err != nil || ok {
		t.Fatalf("Drop = %v, %v; want cancelled", ok, err)
	}
	if st := sess.DragStatus(); st.Phase != DragCancelled {
		t.Fatalf("phase = %s", st.Phase)
	}
	if sess.IsSaving() || sess.View().CanUndo {
		t.Fatal("cancelled drop must not save or record history")
	}
}

func TestDrop_InvalidTargetRestoresSnapshot(t *testing.T) {
	sess, _, _ := mountHome(t)

	sess.BeginDrag(DragSource{Path: blocks.Path{0}})
	sess.Hover(hoverRow(blocks.Path{1}, 1, 70))

	// A leaf cannot receive children.
	ok, err := sess.Drop(&DropTarget{ParentPath: blocks.Path{0}, Index: 0})
	if err != nil || ok {
		t.Fatalf("Drop = %v, %v", ok, err)
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"a", "b", "c"}) {
		t.Fatalf("tree should be restored, got %v", got)
	}
}

func TestCancelDrag_RestoresSnapshot(t *testing.T) {
	sess, _, _ := mountHome(t)

	if sess.CancelDrag() {
		t.Fatal("CancelDrag without a drag should report false")
	}
	sess.BeginDrag(DragSource{Path: blocks.Path{0}})
	sess.Hover(hoverRow(blocks.Path{1}, 1, 70))
	if !sess.CancelDrag() {
		t.Fatal("CancelDrag returned false")
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"a", "b", "c"}) {
		t.Fatalf("after cancel = %v", got)
	}
	if sess.View().CanUndo {
		t.Fatal("cancel must not record history")
	}
}

func TestPaletteDrag(t *testing.T) {
	sess, _, _ := mountHome(t)

	ok, err := sess.BeginDrag(DragSource{Palette: &PaletteItem{Type: blocks.TypeSpacer, Preset: map[string]any{"height": 8.0}}})
	if err != nil || !ok {
		t.Fatalf("BeginDrag = %v, %v", ok, err)
	}
	if moved, _ := sess.Hover(hoverRow(blocks.Path{0}, 0, 5)); moved {
		t.Fatal("palette hover never reorders the tree")
	}
	if ok, err := sess.Drop(&DropTarget{ParentPath: nil, Index: 1}); !ok || err != nil {
		t.Fatalf("Drop = %v, %v", ok, err)
	}
	v := sess.View()
	if len(v.Blocks) != 4 || v.Blocks[1].Type != blocks.TypeSpacer || v.Blocks[1].Data["height"] != 8.0 {
		t.Fatalf("palette block not inserted: %+v", v.Blocks)
	}
}

func TestPaletteDrag_Rejections(t *testing.T) {
	sess, _, _ := mountHome(t)

	if _, err := sess.BeginDrag(DragSource{Palette: &PaletteItem{Type: "marquee"}}); !errors.Is(err, blocks.ErrUnknownType) {
		t.Fatalf("unknown type: err = %v", err)
	}
	if _, err := sess.BeginDrag(DragSource{Palette: &PaletteItem{Type: blocks.TypeHeader}}); !errors.Is(err, ErrProtectedBlock) {
		t.Fatalf("protected type: err = %v", err)
	}
}

func TestDragBlocksOtherStructuralEdits(t *testing.T) {
	sess, _, _ := mountHome(t)
	sess.BeginDrag(DragSource{Path: blocks.Path{0}})

	if _, err := sess.BeginDrag(DragSource{Path: blocks.Path{1}}); !errors.Is(err, ErrDragActive) {
		t.Errorf("second BeginDrag: err = %v", err)
	}
	if _, err := sess.MoveBlock(blocks.Path{1}, blocks.Path{0}); !errors.Is(err, ErrDragActive) {
		t.Errorf("MoveBlock: err = %v", err)
	}
	if _, err := sess.AddBlock(nil, blocks.TypeText, nil, -1); !errors.Is(err, ErrDragActive) {
		t.Errorf("AddBlock: err = %v", err)
	}
	if _, err := sess.DeleteBlock(blocks.Path{1}, confirmYes); !errors.Is(err, ErrDragActive) {
		t.Errorf("DeleteBlock: err = %v", err)
	}
	if sess.Undo() {
		t.Error("Undo during drag should be refused")
	}

	sess.CancelDrag()
	if _, err := sess.Hover(hoverRow(blocks.Path{1}, 1, 70)); !errors.Is(err, ErrNoDrag) {
		t.Errorf("Hover without drag: err = %v", err)
	}
	if _, err := sess.Drop(nil); !errors.Is(err, ErrNoDrag) {
		t.Errorf("Drop without drag: err = %v", err)
	}
}
