package duplicate

import "sort"

// UnionFind is a disjoint-set forest over URLs with path compression.
// The zero value is not usable; call NewUnionFind.
type UnionFind struct {
	parent map[string]string
	order  []string
}

// NewUnionFind creates an empty forest.
func NewUnionFind() *UnionFind {
	return &UnionFind{parent: make(map[string]string)}
}

// Add registers x as a singleton if it is not known yet.
func (u *UnionFind) Add(x string) {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		u.order = append(u.order, x)
	}
}

// Find returns the root of x, flattening the path on the way.
// Unknown elements are added first.
func (u *UnionFind) Find(x string) string {
	u.Add(x)
	p := u.parent[x]
	if p == x {
		return x
	}
	root := u.Find(p)
	u.parent[x] = root
	return root
}

// Union merges the sets containing x and y.
func (u *UnionFind) Union(x, y string) {
	rx, ry := u.Find(x), u.Find(y)
	if rx != ry {
		u.parent[rx] = ry
	}
}

// Groups returns every set with at least two members.
// Members are sorted, and groups are ordered by their first member.
func (u *UnionFind) Groups() [][]string {
	byRoot := make(map[string][]string)
	for _, x := range u.order {
		root := u.Find(x)
		byRoot[root] = append(byRoot[root], x)
	}

	groups := make([][]string, 0, len(byRoot))
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// GroupPairs clusters pairs into transitive groups.
// Call it once per tier so that tiers never merge.
func GroupPairs(pairs []Pair) [][]string {
	uf := NewUnionFind()
	for _, p := range pairs {
		uf.Union(p.A, p.B)
	}
	return uf.Groups()
}
