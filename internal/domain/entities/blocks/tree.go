package blocks

import (
	"io"
	"log/slog"
	"slices"
)

// Tree is the ordered, nested block list of one editing surface. Invalid
// operations are logged and reported as not applied; they never panic and
// never leave the tree half-modified.
type Tree struct {
	root     []*Block
	registry *Registry
	logger   *slog.Logger
}

// NewTree takes ownership of root. A nil logger discards warnings.
func NewTree(root []*Block, registry *Registry, logger *slog.Logger) *Tree {
	if root == nil {
		root = []*Block{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tree{root: root, registry: registry, logger: logger}
}

// Blocks returns the live root list.
func (t *Tree) Blocks() []*Block { return t.root }

func (t *Tree) Registry() *Registry { return t.registry }

// Len returns the number of root blocks.
func (t *Tree) Len() int { return len(t.root) }

// Clone returns an independent deep copy sharing the registry and logger.
func (t *Tree) Clone() *Tree {
	return &Tree{root: CloneList(t.root), registry: t.registry, logger: t.logger}
}

// Replace swaps in a new root list.
func (t *Tree) Replace(root []*Block) {
	if root == nil {
		root = []*Block{}
	}
	t.root = root
}

// Resolve returns the block at p, or nil when p is out of bounds.
func (t *Tree) Resolve(p Path) *Block {
	if len(p) == 0 {
		return nil
	}
	list := t.root
	var b *Block
	for _, idx := range p {
		if idx < 0 || idx >= len(list) {
			return nil
		}
		b = list[idx]
		list = b.Children
	}
	return b
}

// PathOf re-derives the current path of a block id.
func (t *Tree) PathOf(blockID string) (Path, bool) {
	var found Path
	t.Walk(func(p Path, b *Block) bool {
		if b.BlockID == blockID {
			found = p
			return false
		}
		return true
	})
	return found, found != nil
}

// Walk visits blocks in pre-order. Returning false stops the walk.
func (t *Tree) Walk(fn func(Path, *Block) bool) {
	walkList(t.root, Path{}, fn)
}

func walkList(list []*Block, prefix Path, fn func(Path, *Block) bool) bool {
	for i, b := range list {
		p := prefix.Child(i)
		if !fn(p, b) {
			return false
		}
		if !walkList(b.Children, p, fn) {
			return false
		}
	}
	return true
}

// IDs returns every block id reachable from the root, in document order.
func (t *Tree) IDs() []string {
	var ids []string
	t.Walk(func(_ Path, b *Block) bool {
		ids = append(ids, b.BlockID)
		return true
	})
	return ids
}

// listOwner resolves the block that owns the child list at parent. The root
// path yields (nil, true). Non-container owners are rejected.
func (t *Tree) listOwner(parent Path) (*Block, bool) {
	if parent.IsRoot() {
		return nil, true
	}
	owner := t.Resolve(parent)
	if owner == nil || !t.registry.IsContainer(owner.Type) {
		return nil, false
	}
	return owner, true
}

func (t *Tree) childrenOf(owner *Block) []*Block {
	if owner == nil {
		return t.root
	}
	return owner.Children
}

func (t *Tree) setChildrenOf(owner *Block, list []*Block) {
	if owner == nil {
		t.root = list
		return
	}
	owner.Children = list
}

// Move removes the block at src and inserts it at dst. Both paths are read
// against the tree as it is before the move; the final index of dst is
// applied after removal, so a same-list move behaves like a splice. dst may
// address one past the last child to append.
func (t *Tree) Move(src, dst Path) bool {
	if src.Equal(dst) {
		return false
	}
	if src.IsRoot() || dst.IsRoot() {
		t.logger.Warn("Move rejected: root path", "src", src.String(), "dst", dst.String())
		return false
	}
	moving := t.Resolve(src)
	if moving == nil {
		t.logger.Warn("Move rejected: source out of bounds", "src", src.String())
		return false
	}
	if src.IsAncestorOf(dst) {
		t.logger.Warn("Move rejected: destination inside source subtree", "src", src.String(), "dst", dst.String())
		return false
	}

	srcOwner := t.Resolve(src.Parent())
	dstOwner, ok := t.listOwner(dst.Parent())
	if !ok {
		t.logger.Warn("Move rejected: destination parent is not a container", "dst", dst.String())
		return false
	}
	if idx := dst.Last(); idx < 0 || idx > len(t.childrenOf(dstOwner)) {
		t.logger.Warn("Move rejected: destination out of bounds", "dst", dst.String())
		return false
	}

	srcList := t.childrenOf(srcOwner)
	srcList = slices.Delete(slices.Clone(srcList), src.Last(), src.Last()+1)
	t.setChildrenOf(srcOwner, srcList)

	dstList := t.childrenOf(dstOwner)
	idx := min(dst.Last(), len(dstList))
	t.setChildrenOf(dstOwner, slices.Insert(slices.Clone(dstList), idx, moving))
	return true
}

// Add builds a block of typeName and inserts it under parent at index
// (index < 0 appends). Only container parents, or the root, accept children.
func (t *Tree) Add(parent Path, typeName string, preset map[string]any, index int) (*Block, bool) {
	if _, ok := t.listOwner(parent); !ok {
		t.logger.Warn("Add rejected: parent is missing or not a container", "parent", parent.String(), "type", typeName)
		return nil, false
	}
	b, err := t.registry.NewBlock(typeName, preset)
	if err != nil {
		t.logger.Warn("Add rejected", "parent", parent.String(), "type", typeName, "error", err.Error())
		return nil, false
	}
	if !t.Insert(parent, b, index) {
		return nil, false
	}
	return b, true
}

// Insert places an already built block under parent at index (index < 0 appends).
func (t *Tree) Insert(parent Path, b *Block, index int) bool {
	if b == nil {
		return false
	}
	owner, ok := t.listOwner(parent)
	if !ok {
		t.logger.Warn("Insert rejected: parent is missing or not a container", "parent", parent.String())
		return false
	}
	if _, dup := t.PathOf(b.BlockID); dup {
		t.logger.Warn("Insert rejected: duplicate block id", "blockId", b.BlockID)
		return false
	}
	list := t.childrenOf(owner)
	if index < 0 {
		index = len(list)
	}
	if index > len(list) {
		t.logger.Warn("Insert rejected: index out of bounds", "parent", parent.String(), "index", index)
		return false
	}
	t.setChildrenOf(owner, slices.Insert(slices.Clone(list), index, b))
	return true
}

// Delete removes the block at p together with its subtree.
func (t *Tree) Delete(p Path) (*Block, bool) {
	b := t.Resolve(p)
	if b == nil {
		t.logger.Warn("Delete rejected: path out of bounds", "path", p.String())
		return nil, false
	}
	owner := t.Resolve(p.Parent())
	list := t.childrenOf(owner)
	t.setChildrenOf(owner, slices.Delete(slices.Clone(list), p.Last(), p.Last()+1))
	return b, true
}

// UpdateData merges a settings patch into the block's data. The children key
// is structural and ignored here.
func (t *Tree) UpdateData(p Path, patch map[string]any) bool {
	b := t.Resolve(p)
	if b == nil {
		t.logger.Warn("UpdateData rejected: path out of bounds", "path", p.String())
		return false
	}
	data := cloneMap(b.Data)
	if data == nil {
		data = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if k == childrenKey {
			continue
		}
		if v == nil {
			delete(data, k)
			continue
		}
		data[k] = cloneValue(v)
	}
	b.Data = data
	return true
}
