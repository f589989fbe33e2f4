package graph

import "sort"

// UnionFind is a disjoint-set over string IDs, stored by index with path
// halving and union by size.
type UnionFind struct {
	index  map[string]int
	ids    []string
	parent []int
	size   []int
}

// NewUnionFind creates a UnionFind where each ID is its own component
func NewUnionFind(ids []string) *UnionFind {
	uf := &UnionFind{
		index:  make(map[string]int, len(ids)),
		ids:    make([]string, 0, len(ids)),
		parent: make([]int, 0, len(ids)),
		size:   make([]int, 0, len(ids)),
	}
	for _, id := range ids {
		if _, ok := uf.index[id]; ok {
			continue
		}
		uf.index[id] = len(uf.ids)
		uf.parent = append(uf.parent, len(uf.ids))
		uf.size = append(uf.size, 1)
		uf.ids = append(uf.ids, id)
	}
	return uf
}

func (uf *UnionFind) root(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

// Find returns the representative ID of id's component. Unknown IDs are
// their own representative.
func (uf *UnionFind) Find(id string) string {
	i, ok := uf.index[id]
	if !ok {
		return id
	}
	return uf.ids[uf.root(i)]
}

// Union merges the components of a and b. Returns true if they were separate.
func (uf *UnionFind) Union(a, b string) bool {
	ia, okA := uf.index[a]
	ib, okB := uf.index[b]
	if !okA || !okB {
		return false
	}
	ra, rb := uf.root(ia), uf.root(ib)
	if ra == rb {
		return false
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
	return true
}

// Size returns the size of id's component
func (uf *UnionFind) Size(id string) int {
	i, ok := uf.index[id]
	if !ok {
		return 0
	}
	return uf.size[uf.root(i)]
}

// Components returns every component with sorted members, largest first,
// ties broken by first member.
func (uf *UnionFind) Components() [][]string {
	groups := make(map[int][]string)
	for i, id := range uf.ids {
		r := uf.root(i)
		groups[r] = append(groups[r], id)
	}
	out := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}
