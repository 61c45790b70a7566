// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tagops implements the tag algebra helper vocabulary that the IR
// instrumentation pass (package irpass) emits calls to (component C,
// spec.md §4.3): create_tag, load_tag_N/store_tag_N, merge_tags and its
// variants, tag_nop, and the weak-fresh materialization rule.
package tagops

import (
	"dyncomp/internal/profstats"
	"dyncomp/internal/shadow"
	"dyncomp/internal/tag"
)

// GCFunc is invoked whenever CreateTag's allocation count crosses the
// configured threshold. It is supplied by the top-level wiring (so this
// package need not import the garbage collector directly) and must leave
// the Engine's Arena/Shadow consistent with a freshly renumbered tag space.
type GCFunc func(e *Engine)

// Engine bundles the global arena and shadow memory with the bookkeeping
// CreateTag needs to decide when to run a GC pass.
type Engine struct {
	Arena  *tag.Arena
	Shadow *shadow.Memory

	// Stats accumulates the --dyncomp-print-inc counters (SPEC_FULL.md §2);
	// nil disables collection entirely, so tests that don't care about it
	// pay nothing.
	Stats *profstats.Counters

	// ApproximateLiterals selects policy 6's weak-fresh literal mode
	// (spec.md §4.4 item 6).
	ApproximateLiterals bool

	// GCThreshold is the cumulative tag-allocation count (spec.md §4.6);
	// zero disables GC.
	GCThreshold uint64
	onGCReached GCFunc

	allocatedSinceStart uint64
	staticLiteralID     uint64
}

// New constructs an Engine over arena and shadow memory that are otherwise
// owned by the caller (the core's single set of process-wide singletons,
// per spec.md §9).
func New(a *tag.Arena, s *shadow.Memory, gcThreshold uint64, onGC GCFunc) *Engine {
	return &Engine{Arena: a, Shadow: s, GCThreshold: gcThreshold, onGCReached: onGC}
}

// CreateTag allocates a fresh real tag, for a IR Const node's static id
// (debug only) or any other fresh-tag need. It triggers a GC pass whenever
// the cumulative allocation count becomes a multiple of GCThreshold.
func (e *Engine) CreateTag(staticID uint64) tag.Tag {
	t, err := e.Arena.MakeFresh()
	if err != nil {
		// Arena exhaustion is a programming invariant violation (spec.md
		// §7) and must not return a bogus tag, so CreateTag panics here.
		// Nothing recovers the panic: the process ends with Go's panic
		// exit status, not exit(1), and no procexit hook runs.
		panic(err)
	}
	e.allocatedSinceStart++
	if e.Stats != nil {
		e.Stats.AddTagsCreated(1)
	}
	if e.GCThreshold != 0 && e.allocatedSinceStart%e.GCThreshold == 0 {
		if e.onGCReached != nil {
			e.onGCReached(e)
		}
	}
	return t
}

// LiteralTag implements policy 6 (spec.md §4.4): when approximate-literals
// is off, every dynamic instance of an IR Const gets its own fresh tag
// (threaded with a monotonically increasing static id so the optimizer
// cannot coalesce literal sites); when it is on, the literal's tag is
// weak-fresh.
func (e *Engine) LiteralTag() tag.Tag {
	if e.ApproximateLiterals {
		return tag.Max
	}
	e.staticLiteralID++
	return e.CreateTag(e.staticLiteralID)
}

// materialize resolves a weak-fresh tag into a freshly allocated real tag;
// any other tag (including Zero) passes through unchanged. This is the
// "On any store into memory, weak-fresh materializes into a freshly
// allocated real tag" rule (spec.md §3).
func (e *Engine) materialize(t tag.Tag) tag.Tag {
	if t != tag.Max {
		return t
	}
	return e.CreateTag(0)
}

// StoreTagN writes t across the N bytes at addr, materializing weak-fresh
// first.
func (e *Engine) StoreTagN(addr uint64, n int, t tag.Tag) error {
	if e.Stats != nil {
		e.Stats.AddBytesShadowed(int64(n))
	}
	return e.Shadow.SetRange(addr, n, e.materialize(t))
}

// LoadTagN returns the merged leader of the N bytes' tags at addr via
// MergeRange, and rewrites those bytes to that leader (spec.md §4.3's
// load_tag_N contract).
func (e *Engine) LoadTagN(addr uint64, n int) tag.Tag {
	return e.MergeRange(addr, n)
}

// MergeRange implements shadow memory's merge_range (spec.md §4.2): find
// the first nonzero byte tag in [addr, addr+n), union every other nonzero
// byte tag into it, overwrite all n bytes with the resulting leader, and
// return it (Zero if every byte carries Zero).
func (e *Engine) MergeRange(addr uint64, n int) tag.Tag {
	leader := tag.Zero
	for i := 0; i < n; i++ {
		t := e.Shadow.GetTag(addr + uint64(i))
		if t == tag.Zero {
			continue
		}
		if leader == tag.Zero {
			leader = e.Arena.Find(t)
			continue
		}
		leader = e.Arena.Union(leader, t)
	}
	if leader == tag.Zero {
		return tag.Zero
	}
	_ = e.Shadow.SetRange(addr, n, leader)
	return leader
}

// MergeTags implements merge_tags: union(t1, t2) with zero short-circuits
// and weak-fresh absorption (merge(weak_fresh, x) == x).
func (e *Engine) MergeTags(t1, t2 tag.Tag) tag.Tag {
	if t1 == tag.Zero || t1 == tag.Max {
		return t2
	}
	if t2 == tag.Zero || t2 == tag.Max {
		return t1
	}
	if e.Stats != nil {
		e.Stats.AddMerge()
	}
	return e.Arena.Union(t1, t2)
}

// MergeTagsReturn0 performs MergeTags for its side effect only and always
// returns Zero; a Zero argument skips the union entirely.
func (e *Engine) MergeTagsReturn0(t1, t2 tag.Tag) tag.Tag {
	if t1 == tag.Zero || t2 == tag.Zero {
		return tag.Zero
	}
	e.MergeTags(t1, t2)
	return tag.Zero
}

// Merge3Tags and Merge4Tags pairwise-compose MergeTags, returning the final
// leader.
func (e *Engine) Merge3Tags(t1, t2, t3 tag.Tag) tag.Tag {
	return e.MergeTags(e.MergeTags(t1, t2), t3)
}

func (e *Engine) Merge4Tags(t1, t2, t3, t4 tag.Tag) tag.Tag {
	return e.MergeTags(e.MergeTags(t1, t2), e.MergeTags(t3, t4))
}

// TagNop returns t unchanged. Its only purpose in the real IR pass is to
// anchor a dead-code-elimination-proof use of an address expression's tag
// tree (spec.md §4.4, "address tags do not flow into loaded values"); it is
// a plain identity here since this core has no optimizer to defeat.
func (e *Engine) TagNop(t tag.Tag) tag.Tag { return t }
