package hierarchy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in    string
		depth int
	}{
		{"", 0},
		{"-2-", 1},
		{"-2-15-", 2},
		{"-2-15-301-", 3},
	}
	for _, tt := range tests {
		p, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.depth, p.Depth(), tt.in)
		assert.Equal(t, tt.in, p.String())
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{"-", "2-3", "-2-x-", "--", "-0-", "-2--3-"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformedPath, in)
	}
}

func TestChild_KeepsInvariant(t *testing.T) {
	root := Path{}
	assert.Equal(t, "-2-", root.Child(2).String())

	upline := MustParse("-2-15-")
	child := upline.Child(40)
	assert.Equal(t, upline.String()+"40-", child.String())

	// the receiver must not be aliased by the child
	child[0] = 99
	assert.Equal(t, int64(2), upline[0])
}

func TestContainsAndSubtreePrefix(t *testing.T) {
	p := MustParse("-2-15-40-")
	assert.True(t, p.Contains(15))
	assert.False(t, p.Contains(1))
	assert.Equal(t, "-2-15-40-", MustParse("-2-15-").SubtreePrefix(40))
}

func TestSplice_PreservesTail(t *testing.T) {
	// U=15 moves from under 2 to under 7 (whose path is -1-7-... root 1)
	descendant := MustParse("-2-15-40-41-")
	newUPath := MustParse("-1-7-")

	got, err := descendant.Splice(15, newUPath)
	require.NoError(t, err)
	assert.Equal(t, "-1-7-15-40-41-", got.String())

	oldTail, _ := descendant.Tail(15)
	newTail, _ := got.Tail(15)
	assert.True(t, oldTail.Equal(newTail))
}

func TestSplice_NotAncestor(t *testing.T) {
	_, err := MustParse("-2-15-").Splice(99, Path{})
	assert.True(t, errors.Is(err, ErrNotAncestor))
}

func TestRemove(t *testing.T) {
	got, err := MustParse("-2-15-40-").Remove(15)
	require.NoError(t, err)
	assert.Equal(t, "-2-40-", got.String())

	got, err = MustParse("-15-").Remove(15)
	require.NoError(t, err)
	assert.Equal(t, "", got.String())
}

func TestParent(t *testing.T) {
	id, ok := MustParse("-2-15-").Parent()
	assert.True(t, ok)
	assert.Equal(t, int64(15), id)

	_, ok = Path{}.Parent()
	assert.False(t, ok)
}
