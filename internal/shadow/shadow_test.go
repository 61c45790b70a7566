// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shadow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dyncomp/internal/tag"
)

func TestGetTagUnwrittenIsZero(t *testing.T) {
	m := New(0)
	assert.Equal(t, tag.Zero, m.GetTag(0x1000))
}

func TestSetGetTagRoundTrip(t *testing.T) {
	m := New(0)
	require.NoError(t, m.SetTag(42, tag.Tag(7)))
	assert.Equal(t, tag.Tag(7), m.GetTag(42))
}

func TestSetRangeCoversEveryByte(t *testing.T) {
	m := New(0)
	require.NoError(t, m.SetRange(100, 4, tag.Tag(99)))
	for i := uint64(0); i < 4; i++ {
		assert.Equal(t, tag.Tag(99), m.GetTag(100+i))
	}
	assert.Equal(t, tag.Zero, m.GetTag(104))
}

func TestAddressSpaceCapRejectsOutOfRange(t *testing.T) {
	m := New(128)
	assert.NoError(t, m.SetTag(127, tag.Tag(1)))
	assert.ErrorIs(t, m.SetTag(128, tag.Tag(1)), ErrAddressSpace)
}

func TestSetRangeCrossingPageBoundary(t *testing.T) {
	m := New(0)
	addr := uint64(pageSize - 2)
	require.NoError(t, m.SetRange(addr, 4, tag.Tag(5)))
	for i := uint64(0); i < 4; i++ {
		assert.Equal(t, tag.Tag(5), m.GetTag(addr+i))
	}
}

func TestPagesTracksBackedKeysOnly(t *testing.T) {
	m := New(0)
	assert.Empty(t, m.Pages())
	require.NoError(t, m.SetTag(0, tag.Tag(1)))
	require.NoError(t, m.SetTag(pageSize, tag.Tag(1)))
	assert.Len(t, m.Pages(), 2)
}

func TestPageBaseAddr(t *testing.T) {
	assert.Equal(t, uint64(0), PageBaseAddr(0))
	assert.Equal(t, uint64(pageSize), PageBaseAddr(1))
}
