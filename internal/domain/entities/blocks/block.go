// Package blocks defines the block tree that backs every editable page, header
// and footer of a site, together with the structural operations the editor
// performs on it.
package blocks

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// childrenKey is the data key container blocks use for their children on the wire.
const childrenKey = "children"

// newBlockID is replaced in tests that need deterministic ids.
var newBlockID = func() string { return ulid.Make().String() }

// Block is one content unit of a document. Children is only populated for
// container types; on the wire it travels as data.children.
type Block struct {
	BlockID         string
	Type            string
	Data            map[string]any
	Children        []*Block
	LibraryOriginID string
}

type wireBlock struct {
	BlockID         string         `json:"block_id"`
	Type            string         `json:"type"`
	Data            map[string]any `json:"data"`
	LibraryOriginID string         `json:"_library_origin_id,omitempty"`
}

// MarshalJSON folds Children back into data.children.
func (b Block) MarshalJSON() ([]byte, error) {
	data := make(map[string]any, len(b.Data)+1)
	for k, v := range b.Data {
		data[k] = v
	}
	if b.Children != nil {
		data[childrenKey] = b.Children
	}
	return json.Marshal(wireBlock{
		BlockID:         b.BlockID,
		Type:            b.Type,
		Data:            data,
		LibraryOriginID: b.LibraryOriginID,
	})
}

// UnmarshalJSON lifts data.children into Children when it holds a block list.
func (b *Block) UnmarshalJSON(raw []byte) error {
	var wire struct {
		BlockID         string                     `json:"block_id"`
		Type            string                     `json:"type"`
		Data            map[string]json.RawMessage `json:"data"`
		LibraryOriginID string                     `json:"_library_origin_id"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}

	out := Block{
		BlockID:         wire.BlockID,
		Type:            wire.Type,
		Data:            make(map[string]any, len(wire.Data)),
		LibraryOriginID: wire.LibraryOriginID,
	}
	for key, value := range wire.Data {
		if key == childrenKey {
			var children []*Block
			if err := json.Unmarshal(value, &children); err == nil {
				if children == nil {
					children = []*Block{}
				}
				out.Children = children
				continue
			}
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return fmt.Errorf("block %s: data.%s: %w", wire.BlockID, key, err)
		}
		out.Data[key] = decoded
	}

	*b = out
	return nil
}

// Clone returns a deep copy of the block and its subtree.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	out := &Block{
		BlockID:         b.BlockID,
		Type:            b.Type,
		Data:            cloneMap(b.Data),
		LibraryOriginID: b.LibraryOriginID,
	}
	if b.Children != nil {
		out.Children = CloneList(b.Children)
	}
	return out
}

// Reidentify assigns fresh ids to the block and every descendant.
func (b *Block) Reidentify() {
	b.BlockID = newBlockID()
	for _, child := range b.Children {
		child.Reidentify()
	}
}

// CloneList deep-copies a block list. A nil list stays nil.
func CloneList(list []*Block) []*Block {
	if list == nil {
		return nil
	}
	out := make([]*Block, len(list))
	for i, b := range list {
		out[i] = b.Clone()
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []*Block:
		return CloneList(val)
	case *Block:
		return val.Clone()
	default:
		return val
	}
}
