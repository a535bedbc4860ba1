// Package hierarchy models the affiliate tree's materialized ancestor path.
//
// A Path lists every ancestor of a node from the root down to its immediate
// parent. Its stored form is "-1-2-3-"; a root node has the empty path "".
package hierarchy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const separator = "-"

var (
	ErrMalformedPath = errors.New("malformed hierarchy path")
	ErrNotAncestor   = errors.New("node is not an ancestor on this path")
)

// Path is an ordered list of ancestor ids, root first.
type Path []int64

// Parse reads the stored "-1-2-3-" form. The empty string is the root path.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	if !strings.HasPrefix(s, separator) || !strings.HasSuffix(s, separator) || len(s) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedPath, s)
	}

	parts := strings.Split(strings.Trim(s, separator), separator)
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedPath, s)
		}
		path = append(path, id)
	}
	return path, nil
}

// MustParse is Parse for trusted input such as test fixtures.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the stored form.
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(separator)
	for _, id := range p {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteString(separator)
	}
	return b.String()
}

// Child returns the path of a direct child of the node with id parentID
// sitting at this path.
func (p Path) Child(parentID int64) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, parentID)
}

// Depth is the number of ancestors; the root has depth 0.
func (p Path) Depth() int {
	return len(p)
}

// Parent returns the immediate ancestor id, or false for the root.
func (p Path) Parent() (int64, bool) {
	if len(p) == 0 {
		return 0, false
	}
	return p[len(p)-1], true
}

// Contains reports whether id is an ancestor on this path, i.e. whether the
// node owning the path is a descendant of id.
func (p Path) Contains(id int64) bool {
	return p.indexOf(id) >= 0
}

// SubtreePrefix is the stored-form prefix shared by every descendant of the
// node with the given id sitting at this path.
func (p Path) SubtreePrefix(id int64) string {
	return p.Child(id).String()
}

// Tail returns the ancestors strictly below id, or ErrNotAncestor.
func (p Path) Tail(id int64) (Path, error) {
	i := p.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d not in %s", ErrNotAncestor, id, p)
	}
	tail := make(Path, len(p)-i-1)
	copy(tail, p[i+1:])
	return tail, nil
}

// Splice re-roots a descendant's path after movedID has been moved so that it
// now sits at movedPath. Everything below movedID is preserved; everything up
// to and including movedID is replaced by movedPath + movedID.
func (p Path) Splice(movedID int64, movedPath Path) (Path, error) {
	tail, err := p.Tail(movedID)
	if err != nil {
		return nil, err
	}
	out := make(Path, 0, len(movedPath)+1+len(tail))
	out = append(out, movedPath...)
	out = append(out, movedID)
	return append(out, tail...), nil
}

// Remove drops id from the path, re-parenting the owning node's branch onto
// id's own parent.
func (p Path) Remove(id int64) (Path, error) {
	i := p.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d not in %s", ErrNotAncestor, id, p)
	}
	out := make(Path, 0, len(p)-1)
	out = append(out, p[:i]...)
	return append(out, p[i+1:]...), nil
}

// Equal compares two paths element-wise.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

func (p Path) indexOf(id int64) int {
	for i, v := range p {
		if v == id {
			return i
		}
	}
	return -1
}
