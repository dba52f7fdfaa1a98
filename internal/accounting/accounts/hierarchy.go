package accounts

import "sort"

// BuildHierarchy arranges a flat account list into a forest ordered by code.
// Accounts whose parent is absent from the list are treated as roots, and so
// is the lowest-coded member of any parent cycle, so every account appears once.
func BuildHierarchy(accounts []Account) []*Node {
	sorted := make([]Account, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	nodes := make([]Node, len(sorted))
	index := make(map[int64]int, len(sorted))
	for i, a := range sorted {
		nodes[i] = Node{Account: a, Children: []*Node{}}
		index[a.ID] = i
	}
	roots := make([]*Node, 0)
	for i := range nodes {
		n := &nodes[i]
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		p, ok := index[*n.ParentID]
		if !ok || p == i {
			roots = append(roots, n)
			continue
		}
		nodes[p].Children = append(nodes[p].Children, n)
	}

	reached := make([]bool, len(nodes))
	var mark func(n *Node)
	mark = func(n *Node) {
		reached[index[n.ID]] = true
		for _, c := range n.Children {
			if !reached[index[c.ID]] {
				mark(c)
			}
		}
	}
	for _, r := range roots {
		mark(r)
	}
	promoted := false
	for i := range nodes {
		if reached[i] {
			continue
		}
		n := &nodes[i]
		parent := &nodes[index[*n.ParentID]]
		for j, c := range parent.Children {
			if c == n {
				parent.Children = append(parent.Children[:j], parent.Children[j+1:]...)
				break
			}
		}
		roots = append(roots, n)
		promoted = true
		mark(n)
	}
	if promoted {
		sort.SliceStable(roots, func(i, j int) bool { return roots[i].Code < roots[j].Code })
	}
	return roots
}

// Walk visits nodes depth-first, parents before children.
func Walk(roots []*Node, fn func(n *Node, depth int)) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, r := range roots {
		visit(r, 0)
	}
}
