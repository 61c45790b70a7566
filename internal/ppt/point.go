// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ppt implements the per-program-point structures (component E,
// spec.md §3 "Per-program-point structure") and the observation-and-
// correction loop that keeps them consistent with the global tag arena
// (component F, spec.md §4.5).
package ppt

import "dyncomp/internal/tag"

// Key identifies one program point: a function name and whether this is
// its entry or one of its exits.
type Key struct {
	Function string
	Entry    bool
}

// Point is the per-(function, entry|exit) structure of spec.md §3. NumVars
// is fixed once, at declarations time, to the count of catalog variables
// the traversal visits here.
type Point struct {
	Key     Key
	NumVars int

	// VarTags holds, for each variable serial index, the current leader
	// tag of the equivalence class of values observed at this point.
	VarTags []tag.Tag

	// uf is the per-ppt union-find over tag values (the "variable-uf-map",
	// M, spec.md §3): disjoint from the global arena, keyed by leaders
	// drawn from it.
	uf *localUF

	// Detailed-mode-only state (spec.md §4.5's O(n^2) replacement).
	Detailed       bool
	bitmatrix      []byte // packed upper-triangle bits
	NewTagLeaders  []tag.Tag
}

// New creates a Point with numVars variable slots.
func New(key Key, numVars int, detailed bool) *Point {
	p := &Point{
		Key:     key,
		NumVars: numVars,
		VarTags: make([]tag.Tag, numVars),
		uf:      newLocalUF(),
		Detailed: detailed,
	}
	if detailed {
		p.bitmatrix = make([]byte, bitmatrixBytes(numVars))
		p.NewTagLeaders = make([]tag.Tag, numVars)
	}
	return p
}

func bitmatrixBytes(n int) int {
	pairs := (n*n - n) / 2
	return (pairs + 7) / 8
}

// pairIndex returns the bit index for the unordered pair (i, j), i < j,
// in the packed upper-triangle layout.
func pairIndex(n, i, j int) int {
	if i > j {
		i, j = j, i
	}
	// Row-major upper triangle offset: sum of row lengths before row i,
	// plus the column offset within row i.
	return i*n - (i*(i+1))/2 + (j - i - 1)
}

func (p *Point) setBit(idx int) {
	p.bitmatrix[idx/8] |= 1 << uint(idx%8)
}

func (p *Point) getBit(idx int) bool {
	return p.bitmatrix[idx/8]&(1<<uint(idx%8)) != 0
}

// markPairIfEqual records, in detailed mode, that variables i and j were
// observed to share a tag leader during the program point execution
// currently being processed by FinishExecution.
func (p *Point) markPairIfEqual(i, j int) {
	if i == j {
		return
	}
	if p.NewTagLeaders[i] == 0 || p.NewTagLeaders[j] == 0 {
		return
	}
	if p.NewTagLeaders[i] != p.NewTagLeaders[j] {
		return
	}
	p.setBit(pairIndex(p.NumVars, i, j))
}

// FinishExecution is called once all variables at one execution of this
// ppt have had their NewTagLeaders recorded (detailed mode only); it
// updates the bitmatrix for every pair.
func (p *Point) FinishExecution() {
	if !p.Detailed {
		return
	}
	for i := 0; i < p.NumVars; i++ {
		for j := i + 1; j < p.NumVars; j++ {
			p.markPairIfEqual(i, j)
		}
	}
}

// BitSet reports whether the detailed-mode bitmatrix has ever marked
// variables i and j as sharing a leader.
func (p *Point) BitSet(i, j int) bool {
	if i == j {
		return true
	}
	return p.getBit(pairIndex(p.NumVars, i, j))
}
