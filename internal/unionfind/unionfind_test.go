package unionfind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionFind(t *testing.T) {
	s := New()
	s.Union("m3", "m1")
	s.Union("m4", "m3")
	s.Add("m2")
	s.Union("m5", "m6")

	assert.True(t, s.Same("m1", "m4"))
	assert.False(t, s.Same("m1", "m2"))
	assert.False(t, s.Same("m1", "unknown"))
	assert.Equal(t, s.Find("m1"), s.Find("m4"))
	assert.Equal(t, 6, s.Len())

	assert.Equal(t, [][]string{
		{"m1", "m3", "m4"},
		{"m2"},
		{"m5", "m6"},
	}, s.Groups())
}

func TestUnionIsIdempotent(t *testing.T) {
	s := New()
	s.Union("a", "b")
	s.Union("b", "a")
	s.Union("a", "a")
	assert.Equal(t, [][]string{{"a", "b"}}, s.Groups())
}

func TestLongChainCompresses(t *testing.T) {
	s := New()
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	for i := 1; i < len(ids); i++ {
		s.Union(ids[i-1], ids[i])
	}
	root := s.Find("g")
	for _, id := range ids {
		assert.Equal(t, root, s.Find(id))
	}
	assert.Len(t, s.Groups(), 1)
}
