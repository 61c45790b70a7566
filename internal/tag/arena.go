// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tag

import "github.com/pkg/errors"

// ErrOverflow is returned (and is fatal per the core's error taxonomy) when
// an Arena is asked to mint a tag beyond Max1.
var ErrOverflow = errors.New("tag: arena exhausted, next tag would exceed Max1")

const (
	pageBits = 16
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// node is one union-find element. Its Tag field always equals its own
// index; a node is a root iff parent == its own index.
type node struct {
	parent Tag
	rank   uint16
	tag    Tag
}

// Arena is the process-wide two-level sparse union-find over the tag space
// (component A, spec.md §4.1). Pages are allocated lazily on first
// make_set and never individually freed; GC (package compact) renumbers
// and replaces the whole arena.
//
// Arena is not safe for concurrent use: the core's concurrency model is
// single-threaded and cooperative (spec.md §5), so no locking is done here.
type Arena struct {
	pages   []*[pageSize]node
	nextTag Tag // next tag value make_set will hand out via MakeFresh
}

// NewArena returns an empty arena with tag 0 reserved as "no tag".
func NewArena() *Arena {
	a := &Arena{nextTag: 1}
	return a
}

// NextTag reports the next tag value a call to MakeFresh would allocate.
// After a garbage-collection pass it is one past the highest renumbered tag.
func (a *Arena) NextTag() Tag { return a.nextTag }

// pageFor returns the page holding t, allocating it (zero-filled) if
// allocate is true and it does not yet exist.
func (a *Arena) pageFor(t Tag, allocate bool) *[pageSize]node {
	idx := int(t >> pageBits)
	if idx >= len(a.pages) {
		if !allocate {
			return nil
		}
		grown := make([]*[pageSize]node, idx+1)
		copy(grown, a.pages)
		a.pages = grown
	}
	p := a.pages[idx]
	if p == nil {
		if !allocate {
			return nil
		}
		p = &[pageSize]node{}
		a.pages[idx] = p
	}
	return p
}

func (a *Arena) at(t Tag, allocate bool) *node {
	p := a.pageFor(t, allocate)
	if p == nil {
		return nil
	}
	return &p[t&pageMask]
}

// MakeSet allocates a fresh union-find root for tag t. Callers never call
// it twice for the same live tag, except the garbage collector which wipes
// the arena first.
func (a *Arena) MakeSet(t Tag) {
	n := a.at(t, true)
	n.parent = t
	n.rank = 0
	n.tag = t
}

// MakeFresh allocates and returns a brand new real tag, with its own
// singleton union-find set already created. It does not itself trigger GC;
// callers that need GC-on-threshold semantics do so in package tagops.
func (a *Arena) MakeFresh() (Tag, error) {
	if a.nextTag >= Max1 {
		return Zero, ErrOverflow
	}
	t := a.nextTag
	a.nextTag++
	a.MakeSet(t)
	return t, nil
}

// Find returns the root of t's equivalence class, performing full path
// compression. Find(0) is 0; Find of a tag with no backing page is that
// tag itself (an as-yet-unregistered singleton resolves to itself).
func (a *Arena) Find(t Tag) Tag {
	if t == Zero {
		return Zero
	}
	n := a.at(t, false)
	if n == nil {
		return t
	}
	// Walk to the root.
	root := t
	for {
		rn := a.at(root, false)
		if rn == nil || rn.parent == root {
			break
		}
		root = rn.parent
	}
	// Path-compress every node visited.
	cur := t
	for cur != root {
		cn := a.at(cur, false)
		next := cn.parent
		cn.parent = root
		cur = next
	}
	return root
}

// Union merges the equivalence classes of a and b by rank and returns the
// resulting root. A zero argument short-circuits to the other tag. Callers
// must never pass Zero as both arguments expecting a meaningful union; per
// the tag algebra, merge(0,x) == x is handled by the caller (package
// tagops) before Union is invoked, Union itself just implements the raw
// disjoint-set union.
func (a *Arena) Union(x, y Tag) Tag {
	if x == Zero {
		return y
	}
	if y == Zero {
		return x
	}
	rx, ry := a.Find(x), a.Find(y)
	if rx == ry {
		return rx
	}
	nx, ny := a.at(rx, true), a.at(ry, true)
	switch {
	case nx.rank < ny.rank:
		nx.parent = ry
		return ry
	case nx.rank > ny.rank:
		ny.parent = rx
		return rx
	default:
		ny.parent = rx
		nx.rank++
		return rx
	}
}

// Pages reports the number of allocated primary-table slots, for
// diagnostics.
func (a *Arena) Pages() int { return len(a.pages) }

// Reset discards all union-find state and sets the next-fresh-tag counter.
// Used exclusively by package compact after a GC pass has computed the new
// tag numbering.
func (a *Arena) Reset(nextTag Tag) {
	a.pages = nil
	a.nextTag = nextTag
}
