// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package traverse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dyncomp/internal/catalog"
	"dyncomp/internal/host/testhost"
)

var intType = &catalog.Type{Kind: catalog.KindInt, Name: "int", ByteSize: 4}

func TestWalkScalarFormalGetsItsAddress(t *testing.T) {
	v := &catalog.Variable{Name: "a", Type: intType}
	fn := &catalog.Function{Name: "f", Formals: []*catalog.Variable{v}}

	var got []Visit
	addrOf := func(vv *catalog.Variable) uint64 { return 0x1000 }
	tr := New(nil, addrOf, DefaultLimits(), func(visit Visit) Action {
		got = append(got, visit)
		return ActionDerefMorePointers
	})
	tr.Walk(fn, true)

	if assert.Len(t, got, 1) {
		assert.Equal(t, uint64(0x1000), got[0].ValueAddr)
		assert.Equal(t, "a", got[0].FullyQualified)
	}
}

func TestWalkPointerDereferencesThroughHost(t *testing.T) {
	h := testhost.New(-1, -1)
	// pointee lives at 0x2000; the pointer variable's own storage holds
	// that address, little-endian, at 0x1000.
	target := uint64(0x2000)
	for i := 0; i < 8; i++ {
		h.WriteByte(0x1000+uint64(i), byte(target>>(8*uint(i))))
	}
	h.WriteByte(target, 42)

	v := &catalog.Variable{Name: "p", Type: intType, PtrLevels: 1}
	fn := &catalog.Function{Name: "f", Formals: []*catalog.Variable{v}}

	var got []Visit
	addrOf := func(vv *catalog.Variable) uint64 { return 0x1000 }
	tr := New(h, addrOf, DefaultLimits(), func(visit Visit) Action {
		got = append(got, visit)
		return ActionDerefMorePointers
	})
	tr.Walk(fn, true)

	// one visit for the pointer itself, one for the dereferenced int
	if assert.Len(t, got, 2) {
		assert.Equal(t, uint64(0x1000), got[0].ValueAddr)
		assert.Equal(t, target, got[1].ValueAddr)
	}
}

func TestWalkStructFieldsUseByteOffset(t *testing.T) {
	fieldA := &catalog.Variable{Name: "x", Type: intType, ByteOffset: 0}
	fieldB := &catalog.Variable{Name: "y", Type: intType, ByteOffset: 4}
	structType := &catalog.Type{
		Kind:   catalog.KindStructOrClass,
		Name:   "point",
		Fields: []*catalog.Variable{fieldA, fieldB},
	}
	v := &catalog.Variable{Name: "pt", Type: structType}
	fn := &catalog.Function{Name: "f", Formals: []*catalog.Variable{v}}

	var got []Visit
	addrOf := func(vv *catalog.Variable) uint64 { return 0x3000 }
	tr := New(nil, addrOf, DefaultLimits(), func(visit Visit) Action {
		got = append(got, visit)
		return ActionDerefMorePointers
	})
	tr.Walk(fn, true)

	// one base-struct visit (no printable value) plus one per field
	if assert.Len(t, got, 3) {
		assert.Equal(t, "pt.x", got[1].FullyQualified)
		assert.Equal(t, uint64(0x3000), got[1].ValueAddr)
		assert.Equal(t, "pt.y", got[2].FullyQualified)
		assert.Equal(t, uint64(0x3004), got[2].ValueAddr)
	}
}

func TestWalkArrayFlattensToOneSequenceVisit(t *testing.T) {
	v := &catalog.Variable{
		Name: "arr", Type: intType,
		ArrayDims: []catalog.ArrayDim{{UpperBound: 2}},
	}
	fn := &catalog.Function{Name: "f", Formals: []*catalog.Variable{v}}

	var got []Visit
	addrOf := func(vv *catalog.Variable) uint64 { return 0x4000 }
	tr := New(nil, addrOf, DefaultLimits(), func(visit Visit) Action {
		got = append(got, visit)
		return ActionDerefMorePointers
	})
	tr.Walk(fn, true)

	if assert.Len(t, got, 1) {
		assert.True(t, got[0].IsSequence)
		assert.Equal(t, 3, got[0].NumElts)
		assert.Equal(t, 4, got[0].EltStride)
		assert.Equal(t, uint64(0x4000), got[0].ValueAddr)
	}
}

func TestWalkNilAddrOfLeavesEveryVisitUnaddressable(t *testing.T) {
	v := &catalog.Variable{Name: "a", Type: intType}
	fn := &catalog.Function{Name: "f", Formals: []*catalog.Variable{v}}

	var got []Visit
	tr := New(nil, nil, DefaultLimits(), func(visit Visit) Action {
		got = append(got, visit)
		return ActionDerefMorePointers
	})
	tr.Walk(fn, true)

	if assert.Len(t, got, 1) {
		assert.Equal(t, uint64(0), got[0].ValueAddr)
	}
}
