// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ppt

// varUF is a small disjoint-set over variable serial indices, used only to
// convert a detailed-mode bitmatrix into equivalence classes at program
// end (spec.md §4.5, "Detailed mode (O(n^2))").
type varUF struct {
	parent []int
	rank   []int
}

func newVarUF(n int) *varUF {
	u := &varUF{parent: make([]int, n), rank: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *varUF) find(i int) int {
	root := i
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for i != root {
		next := u.parent[i]
		u.parent[i] = root
		i = next
	}
	return root
}

func (u *varUF) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri == rj {
		return
	}
	switch {
	case u.rank[ri] < u.rank[rj]:
		u.parent[ri] = rj
	case u.rank[ri] > u.rank[rj]:
		u.parent[rj] = ri
	default:
		u.parent[rj] = ri
		u.rank[ri]++
	}
}

// DetailedClasses converts the bitmatrix into per-variable class ids: for
// every marked pair (i, j) it unions i and j, then returns one class id per
// variable (ids are the representative variable index, not yet renumbered
// into sequential comparability numbers -- package trace does that last
// step uniformly for detailed and non-detailed ppts).
func (p *Point) DetailedClasses() []int {
	u := newVarUF(p.NumVars)
	for i := 0; i < p.NumVars; i++ {
		for j := i + 1; j < p.NumVars; j++ {
			if p.BitSet(i, j) {
				u.union(i, j)
			}
		}
	}
	classes := make([]int, p.NumVars)
	for i := range classes {
		classes[i] = u.find(i)
	}
	return classes
}
