// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ppt

import "dyncomp/internal/tag"

// localUF is the per-ppt "variable-uf-map" M of spec.md §3: a union-find
// over tag values, disjoint from the global arena, whose nodes are owned
// by the Point and replaced wholesale during a GC rebuild (package
// compact). Every key present is a global leader at the time of insertion.
type localUF struct {
	nodes map[tag.Tag]*ufNode
}

type ufNode struct {
	parent tag.Tag
	rank   uint16
}

func newLocalUF() *localUF {
	return &localUF{nodes: make(map[tag.Tag]*ufNode)}
}

// Has reports whether t is a key of M.
func (m *localUF) Has(t tag.Tag) bool {
	_, ok := m.nodes[t]
	return ok
}

// MakeSet inserts t as a fresh singleton, if absent.
func (m *localUF) MakeSet(t tag.Tag) {
	if _, ok := m.nodes[t]; ok {
		return
	}
	m.nodes[t] = &ufNode{parent: t}
}

// FindLeader returns M's current leader for t, with path compression. If t
// is not a key of M, it returns t unchanged (so callers can feed in a
// global leader that has not yet been observed locally).
func (m *localUF) FindLeader(t tag.Tag) tag.Tag {
	if _, ok := m.nodes[t]; !ok {
		return t
	}
	root := t
	for {
		rn := m.nodes[root]
		if rn.parent == root {
			break
		}
		root = rn.parent
	}
	cur := t
	for cur != root {
		cn := m.nodes[cur]
		next := cn.parent
		cn.parent = root
		cur = next
	}
	return root
}

// Union merges a and b within M, inserting either as a fresh singleton if
// not already present, and returns the resulting leader. A Zero argument
// short-circuits to the other tag's leader; Zero never becomes a key of M.
func (m *localUF) Union(a, b tag.Tag) tag.Tag {
	if a == tag.Zero || b == tag.Zero {
		other := a
		if a == tag.Zero {
			other = b
		}
		if other == tag.Zero {
			return tag.Zero
		}
		m.MakeSet(other)
		return m.FindLeader(other)
	}
	m.MakeSet(a)
	m.MakeSet(b)
	ra, rb := m.FindLeader(a), m.FindLeader(b)
	if ra == rb {
		return ra
	}
	na, nb := m.nodes[ra], m.nodes[rb]
	switch {
	case na.rank < nb.rank:
		na.parent = rb
		return rb
	case na.rank > nb.rank:
		nb.parent = ra
		return ra
	default:
		nb.parent = ra
		na.rank++
		return ra
	}
}

// Members returns every key currently in the same M-class as t (including
// t itself), i.e. every node whose root is FindLeader(t). Used by the
// observation loop's sibling-migration check (spec.md §4.5 step 2).
func (m *localUF) Members(t tag.Tag) []tag.Tag {
	leader := m.FindLeader(t)
	var out []tag.Tag
	for k := range m.nodes {
		if m.FindLeader(k) == leader {
			out = append(out, k)
		}
	}
	return out
}

// Keys returns every tag currently tracked by M, for the garbage
// collector's rebuild pass.
func (m *localUF) Keys() []tag.Tag {
	out := make([]tag.Tag, 0, len(m.nodes))
	for k := range m.nodes {
		out = append(out, k)
	}
	return out
}

// Parent returns the raw (uncompressed) parent pointer for key t, for the
// GC rebuild pass, which must replay non-leader unions in parent order.
func (m *localUF) Parent(t tag.Tag) (tag.Tag, bool) {
	n, ok := m.nodes[t]
	if !ok {
		return 0, false
	}
	return n.parent, true
}

// Replace discards all of m's state and adopts fresh's nodes wholesale.
// The garbage collector swaps maps through Point.ReplaceUF instead.
func (m *localUF) Replace(fresh *localUF) {
	m.nodes = fresh.nodes
}

// UF exposes p's variable-uf-map for package compact's GC rebuild pass
// (spec.md §4.6 step 4). Together with ReplaceUF, it is the only escape
// hatch into localUF's internals outside this package.
func (p *Point) UF() *LocalUF { return (*LocalUF)(p.uf) }

// LocalUF is the exported alias of localUF used across package
// boundaries by package compact.
type LocalUF localUF

func (m *LocalUF) Has(t tag.Tag) bool                 { return (*localUF)(m).Has(t) }
func (m *LocalUF) MakeSet(t tag.Tag)                  { (*localUF)(m).MakeSet(t) }
func (m *LocalUF) FindLeader(t tag.Tag) tag.Tag        { return (*localUF)(m).FindLeader(t) }
func (m *LocalUF) Union(a, b tag.Tag) tag.Tag          { return (*localUF)(m).Union(a, b) }
func (m *LocalUF) Keys() []tag.Tag                     { return (*localUF)(m).Keys() }
func (m *LocalUF) Parent(t tag.Tag) (tag.Tag, bool)    { return (*localUF)(m).Parent(t) }

// NewLocalUF constructs a standalone LocalUF, used by package compact to
// build the replacement map before swapping it in via Point.ReplaceUF.
func NewLocalUF() *LocalUF { return (*LocalUF)(newLocalUF()) }

// ReplaceUF swaps p's variable-uf-map for fresh wholesale.
func (p *Point) ReplaceUF(fresh *LocalUF) {
	p.uf = (*localUF)(fresh)
}
