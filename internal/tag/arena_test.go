// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSingleton(t *testing.T) {
	a := NewArena()
	x, err := a.MakeFresh()
	require.NoError(t, err)
	assert.Equal(t, x, a.Find(x))
}

func TestUnionMergesClasses(t *testing.T) {
	a := NewArena()
	x, _ := a.MakeFresh()
	y, _ := a.MakeFresh()
	z, _ := a.MakeFresh()

	root := a.Union(x, y)
	assert.Equal(t, root, a.Find(x))
	assert.Equal(t, root, a.Find(y))
	assert.NotEqual(t, a.Find(x), a.Find(z))

	a.Union(y, z)
	assert.Equal(t, a.Find(x), a.Find(z), "union is transitive: x~y, y~z => x~z")
}

func TestUnionWithZeroIsIdentity(t *testing.T) {
	a := NewArena()
	x, _ := a.MakeFresh()
	assert.Equal(t, x, a.Union(Zero, x))
	assert.Equal(t, x, a.Union(x, Zero))
}

func TestFindZeroIsZero(t *testing.T) {
	a := NewArena()
	assert.Equal(t, Zero, a.Find(Zero))
}

func TestFindUnregisteredTagIsItself(t *testing.T) {
	a := NewArena()
	assert.Equal(t, Tag(12345), a.Find(Tag(12345)))
}

func TestUnionIdempotentOnSameRoot(t *testing.T) {
	a := NewArena()
	x, _ := a.MakeFresh()
	y, _ := a.MakeFresh()
	a.Union(x, y)
	root := a.Find(x)
	// unioning an already-merged pair again must not change the root
	assert.Equal(t, root, a.Union(x, y))
}

func TestMakeFreshExhaustion(t *testing.T) {
	a := NewArena()
	a.Reset(Max1)
	_, err := a.MakeFresh()
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestResetClearsState(t *testing.T) {
	a := NewArena()
	x, _ := a.MakeFresh()
	a.Union(x, x)
	a.Reset(1)
	assert.Equal(t, 0, a.Pages())
	assert.Equal(t, Tag(1), a.NextTag())
}

func TestTagReservedValues(t *testing.T) {
	assert.True(t, Max.IsWeakFresh())
	assert.False(t, Zero.IsWeakFresh())
	assert.False(t, Zero.IsReal())
	assert.False(t, Max.IsReal())
	assert.True(t, Tag(1).IsReal())
}
