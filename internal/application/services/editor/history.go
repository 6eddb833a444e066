package editor

import "github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"

// history is a bounded undo/redo stack of root-list snapshots.
type history struct {
	depth int
	undo  [][]*blocks.Block
	redo  [][]*blocks.Block
}

func newHistory(depth int) *history {
	if depth <= 0 {
		depth = 50
	}
	return &history{depth: depth}
}

// record stores the state before a committed change and drops the redo stack.
func (h *history) record(before []*blocks.Block) {
	h.undo = append(h.undo, before)
	if len(h.undo) > h.depth {
		h.undo = h.undo[len(h.undo)-h.depth:]
	}
	h.redo = nil
}

func (h *history) stepBack(current []*blocks.Block) ([]*blocks.Block, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return prev, true
}

func (h *history) stepForward(current []*blocks.Block) ([]*blocks.Block, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	return next, true
}

func (h *history) canUndo() bool { return len(h.undo) > 0 }
func (h *history) canRedo() bool { return len(h.redo) > 0 }

func (h *history) reset() {
	h.undo = nil
	h.redo = nil
}
