// Package unionfind is a disjoint-set over string ids backed by an index
// arena with path compression and union by size.
package unionfind

import "sort"

// Sets groups string ids into disjoint sets.
type Sets struct {
	index  map[string]int
	ids    []string
	parent []int
	size   []int
}

// New returns an empty Sets.
func New() *Sets {
	return &Sets{index: make(map[string]int)}
}

// Add registers id as a singleton if it is not already known and returns
// its arena index.
func (s *Sets) Add(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	i := len(s.ids)
	s.index[id] = i
	s.ids = append(s.ids, id)
	s.parent = append(s.parent, i)
	s.size = append(s.size, 1)
	return i
}

func (s *Sets) find(i int) int {
	root := i
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for s.parent[i] != root {
		next := s.parent[i]
		s.parent[i] = root
		i = next
	}
	return root
}

// Find returns the representative id of the set holding id.
// Unknown ids are added first.
func (s *Sets) Find(id string) string {
	return s.ids[s.find(s.Add(id))]
}

// Union merges the sets holding a and b.
func (s *Sets) Union(a, b string) {
	ra, rb := s.find(s.Add(a)), s.find(s.Add(b))
	if ra == rb {
		return
	}
	if s.size[ra] < s.size[rb] {
		ra, rb = rb, ra
	}
	s.parent[rb] = ra
	s.size[ra] += s.size[rb]
}

// Same reports whether a and b are in the same set.
func (s *Sets) Same(a, b string) bool {
	ia, okA := s.index[a]
	ib, okB := s.index[b]
	return okA && okB && s.find(ia) == s.find(ib)
}

// Len is the number of ids registered.
func (s *Sets) Len() int { return len(s.ids) }

// Groups returns every set as a sorted member list. Groups are ordered by
// their smallest member.
func (s *Sets) Groups() [][]string {
	byRoot := make(map[int][]string)
	for i, id := range s.ids {
		r := s.find(i)
		byRoot[r] = append(byRoot[r], id)
	}
	out := make([][]string, 0, len(byRoot))
	for _, members := range byRoot {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
