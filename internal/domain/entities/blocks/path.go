package blocks

import (
	"fmt"
	"strconv"
	"strings"
)

// Path locates a block by position: [2, 0, 1] is the second grandchild of the
// first child of the third root block. Paths go stale after any structural
// change and must be re-derived with Tree.PathOf.
type Path []int

// ParsePath parses the dotted form produced by Path.String. The empty string
// is the root path.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	out := make(Path, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid path segment %q in %q", part, s)
		}
		out[i] = n
	}
	return out, nil
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// IsRoot reports whether p addresses the root list itself.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Parent returns the path of the containing list's owner.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p[:len(p)-1].Clone()
}

// Last returns the index within the parent list, or -1 for the root path.
func (p Path) Last() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}

// Child returns the path of the i-th child of p.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether o lies strictly inside the subtree at p.
func (p Path) IsAncestorOf(o Path) bool {
	if len(p) >= len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Compare orders paths by pre-order document position. An ancestor sorts
// before its descendants.
func (p Path) Compare(o Path) int {
	for i := 0; i < len(p) && i < len(o); i++ {
		switch {
		case p[i] < o[i]:
			return -1
		case p[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(o):
		return -1
	case len(p) > len(o):
		return 1
	}
	return 0
}
