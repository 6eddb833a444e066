package editor

import (
	"fmt"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
)

// DragPhase is the state of the drag gesture.
type DragPhase string

const (
	DragIdle            DragPhase = "idle"
	DragDragging        DragPhase = "dragging"
	DragHoverEvaluating DragPhase = "hover-evaluating"
	DragReordering      DragPhase = "reordering"
	DragDropped         DragPhase = "dropped"
	DragCancelled       DragPhase = "cancelled"
)

// PaletteItem is a not-yet-created block dragged in from the palette.
type PaletteItem struct {
	Type   string         `json:"type"`
	Preset map[string]any `json:"preset,omitempty"`
}

// DragSource is either an existing block path or a palette item.
type DragSource struct {
	Path    blocks.Path  `json:"path,omitempty"`
	Palette *PaletteItem `json:"palette,omitempty"`
}

// HoverTarget describes the block under the pointer in client coordinates.
type HoverTarget struct {
	Path     blocks.Path `json:"path"`
	Top      float64     `json:"top"`
	Height   float64     `json:"height"`
	PointerY float64     `json:"pointerY"`
}

// DropTarget is the list position the gesture was released over.
type DropTarget struct {
	ParentPath blocks.Path `json:"parentPath"`
	Index      int         `json:"index"`
}

// DragStatus reports the gesture to clients. Phase is the last phase
// reached; dropped and cancelled persist until the next BeginDrag.
type DragStatus struct {
	Phase   DragPhase    `json:"phase"`
	BlockID string       `json:"blockId,omitempty"`
	Path    *string      `json:"path,omitempty"`
	Palette *PaletteItem `json:"palette,omitempty"`
	Moved   bool         `json:"moved"`
}

type dragState struct {
	phase    DragPhase
	blockID  string
	palette  *PaletteItem
	snapshot []*blocks.Block
	moved    bool
}

// BeginDrag starts a gesture and snapshots the tree so it can be cancelled.
func (s *Session) BeginDrag(src DragSource) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag != nil {
		return false, ErrDragActive
	}

	d := &dragState{phase: DragDragging, snapshot: blocks.CloneList(s.tree.Blocks())}
	switch {
	case src.Palette != nil:
		t, ok := s.registry.Lookup(src.Palette.Type)
		if !ok {
			return false, fmt.Errorf("%w: %s", blocks.ErrUnknownType, src.Palette.Type)
		}
		if t.Protected {
			return false, fmt.Errorf("%w: %s cannot be added", ErrProtectedBlock, t.Name)
		}
		item := *src.Palette
		d.palette = &item
	default:
		b := s.tree.Resolve(src.Path)
		if b == nil {
			s.logger.Warn("BeginDrag ignored: path out of bounds", "path", src.Path.String(), "sessionId", s.ID)
			return false, nil
		}
		if s.registry.IsProtected(b.Type) {
			return false, fmt.Errorf("%w: %s cannot be dragged", ErrProtectedBlock, b.Type)
		}
		d.blockID = b.BlockID
	}

	s.drag = d
	s.lastDrag = DragDragging
	return true, nil
}

// Hover evaluates the pointer over a sibling and reorders live once the
// pointer crosses the hovered block's midpoint in the drag direction. It
// reports whether the tree changed.
func (s *Session) Hover(target HoverTarget) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.drag
	if d == nil {
		return false, ErrNoDrag
	}
	d.phase = DragHoverEvaluating
	s.lastDrag = d.phase
	if d.palette != nil {
		return false, nil
	}

	current, ok := s.tree.PathOf(d.blockID)
	if !ok {
		return false, nil
	}
	if current.Equal(target.Path) || current.IsAncestorOf(target.Path) {
		return false, nil
	}
	if s.tree.Resolve(target.Path) == nil {
		return false, nil
	}

	midpoint := target.Top + target.Height/2
	dst := target.Path
	switch current.Compare(target.Path) {
	case -1:
		if target.PointerY <= midpoint {
			return false, nil
		}
		// Within one list the splice lands after the target; across lists
		// the block must be placed after it explicitly.
		if !current.Parent().Equal(target.Path.Parent()) {
			dst = target.Path.Parent().Child(target.Path.Last() + 1)
		}
	case 1:
		if target.PointerY >= midpoint {
			return false, nil
		}
	default:
		return false, nil
	}

	if !s.tree.Move(current, dst) {
		return false, nil
	}
	d.phase = DragReordering
	s.lastDrag = d.phase
	d.moved = true
	s.publishTreeLocked()
	return true, nil
}

// Drop ends the gesture. A palette drag adds a block at target; a block drag
// moves to target, or keeps its live position when target is nil. Without a
// usable target the gesture is cancelled. A committed drop is one undo step.
func (s *Session) Drop(target *DropTarget) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.drag
	if d == nil {
		return false, ErrNoDrag
	}

	committed := false
	if d.palette != nil {
		if target != nil {
			_, committed = s.tree.Add(target.ParentPath, d.palette.Type, d.palette.Preset, target.Index)
		}
	} else {
		current, ok := s.tree.PathOf(d.blockID)
		switch {
		case !ok:
		case target == nil:
			committed = d.moved
		default:
			dst := target.ParentPath.Child(target.Index)
			if current.Equal(dst) {
				committed = d.moved
			} else {
				committed = s.tree.Move(current, dst)
			}
		}
	}

	if !committed {
		s.cancelDragLocked()
		return false, nil
	}

	s.drag = nil
	s.lastDrag = DragDropped
	s.commitLocked(d.snapshot, "drop")
	return true, nil
}

// CancelDrag restores the tree to its state before BeginDrag.
func (s *Session) CancelDrag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag == nil {
		return false
	}
	s.cancelDragLocked()
	return true
}

func (s *Session) cancelDragLocked() {
	d := s.drag
	s.drag = nil
	s.lastDrag = DragCancelled
	if d.moved {
		s.tree.Replace(d.snapshot)
		s.publishTreeLocked()
	}
}

// DragStatus returns the current gesture state.
func (s *Session) DragStatus() DragStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragStatusLocked()
}

func (s *Session) dragStatusLocked() DragStatus {
	d := s.drag
	if d == nil {
		phase := s.lastDrag
		if phase == "" {
			phase = DragIdle
		}
		return DragStatus{Phase: phase}
	}
	st := DragStatus{Phase: d.phase, BlockID: d.blockID, Palette: d.palette, Moved: d.moved}
	if d.blockID != "" {
		if p, ok := s.tree.PathOf(d.blockID); ok {
			str := p.String()
			st.Path = &str
		}
	}
	return st
}
