// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ppt

// Table owns every Point for the life of the process (spec.md §3:
// "Per-program-point structures are created when the declarations pass
// counts variables at that point; they live for the whole process").
type Table struct {
	points map[Key]*Point
	order  []Key // declaration order, for deterministic output
}

func NewTable() *Table {
	return &Table{points: make(map[Key]*Point)}
}

// Declare registers a Point for key with numVars slots. Calling it twice
// for the same key is a programming error (the declarations pass runs
// once).
func (t *Table) Declare(key Key, numVars int, detailed bool) *Point {
	p := New(key, numVars, detailed)
	t.points[key] = p
	t.order = append(t.order, key)
	return p
}

func (t *Table) Get(key Key) (*Point, bool) {
	p, ok := t.points[key]
	return p, ok
}

// Keys returns every declared program point key in declaration order.
func (t *Table) Keys() []Key { return t.order }

// All returns every Point, for the garbage collector's sweep.
func (t *Table) All() []*Point {
	out := make([]*Point, 0, len(t.points))
	for _, k := range t.order {
		out = append(out, t.points[k])
	}
	return out
}
