// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package traverse implements the variable traversal state machine
// (component H, spec.md §4.7): a recursive walk over the catalog that
// visits every expansion of a source-level variable
// (pointer dereference, array flattening, struct/class field expansion,
// superclass flattening) and invokes a caller-supplied action per visit.
package traverse

import (
	"dyncomp/internal/catalog"
	"dyncomp/internal/host"
)

// Origin classifies where a visited variable came from.
type Origin int

const (
	OriginGlobal Origin = iota
	OriginFormalParameter
	OriginReturn
	OriginDerived
	OriginDerivedFlattenedArray
)

// Action is the traversal callback's verdict on whether to keep
// descending into the just-visited variable's target.
type Action int

const (
	ActionDisregardPtrDerefs Action = iota
	ActionDoNotDerefMorePointers
	ActionDerefMorePointers
	ActionStopTraversal
)

// Visit is the tuple spec.md §4.7 describes passed to the traversal
// action.
type Visit struct {
	Variable         *catalog.Variable
	FullyQualified   string
	Origin           Origin
	NumDerefs        int
	LayersBeforeBase int
	IsInit           bool
	Disambig         catalog.Disambiguation

	IsSequence bool
	ValueAddr  uint64 // 0 if not addressable
	NumElts    int
	EltStride  int

	// Hidden is true for members inlined from a flattened superclass; the
	// emitter (package trace) uses it to place the variable under an
	// enclosing-var "this" parent instead of the function's own ppt.
	Hidden bool

	Func    *catalog.Function
	IsEntry bool
}

// ActionFunc is the caller-supplied visitor.
type ActionFunc func(v Visit) Action

// Limits bounds the traversal's recursion, per spec.md §4.7.
type Limits struct {
	MaxStructDepth   int
	MaxNestingDepth  int
	MaxPointerDerefs int // bounded fan-out for repeated pointer chases
}

// DefaultLimits matches the reference tool's defaults.
func DefaultLimits() Limits {
	return Limits{MaxStructDepth: 10, MaxNestingDepth: 20, MaxPointerDerefs: 10}
}

// AddrFunc resolves a top-level formal, local, or return variable to its
// guest address for the execution currently being traversed -- the
// virtual-stack lookup spec.md §4.7/§9 assumes the host supplies. Struct
// members and dereferenced pointer targets compute their own addresses
// from there; AddrFunc is only ever consulted at depth 0.
type AddrFunc func(v *catalog.Variable) uint64

// Traversal walks one function's catalog entries at one program point.
type Traversal struct {
	h       host.Host
	addrOf  AddrFunc
	limits  Limits
	action  ActionFunc

	// visitedTypes guards against infinite recursion through
	// self-referential struct types; reset at every top-level ppt.
	visitedTypes map[*catalog.Type]bool
}

// New constructs a Traversal bound to host h (for dereferencing pointers
// and reading struct/array bytes), addrOf (for locating each top-level
// variable's storage), and the given recursion limits. addrOf may be nil,
// in which case every top-level variable traverses as unaddressable
// (ValueAddr 0 throughout) -- useful for the declarations-only structural
// pass, which only needs the variable count and never reads through h.
func New(h host.Host, addrOf AddrFunc, limits Limits, action ActionFunc) *Traversal {
	return &Traversal{h: h, addrOf: addrOf, limits: limits, action: action, visitedTypes: make(map[*catalog.Type]bool)}
}

// Walk runs the traversal over fn's formals, then (at exit ppts only) its
// return variables, then its locals, each group in catalog order.
func (t *Traversal) Walk(fn *catalog.Function, isEntry bool) {
	t.visitedTypes = make(map[*catalog.Type]bool)
	vars := fn.Formals
	if !isEntry {
		vars = append(append([]*catalog.Variable{}, fn.Formals...), fn.Returns...)
	}
	for _, v := range vars {
		if !fn.Include(v.Name) {
			continue
		}
		origin := OriginFormalParameter
		for _, r := range fn.Returns {
			if r == v {
				origin = OriginReturn
			}
		}
		t.walkVariable(v, v.Name, origin, 0, 0, fn, isEntry, false, t.topAddr(v))
	}
	for _, v := range fn.Locals {
		if !fn.Include(v.Name) {
			continue
		}
		t.walkVariable(v, v.Name, OriginDerived, 0, 0, fn, isEntry, false, t.topAddr(v))
	}
}

func (t *Traversal) topAddr(v *catalog.Variable) uint64 {
	if t.addrOf == nil {
		return 0
	}
	return t.addrOf(v)
}

// readPointer reads the 8-byte little-endian pointer value stored at addr,
// i.e. the address v's current target lives at. Returns 0 (nonsensical)
// if addr itself is 0 or unaddressed in the host.
func (t *Traversal) readPointer(addr uint64) uint64 {
	if addr == 0 || t.h == nil || !t.h.Allocated(addr) {
		return 0
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(t.h.ReadByte(addr+uint64(i)))
	}
	return v
}

// walkVariable is the traversal's recursive core. addr is the guest
// address of v's own storage (0 if unknown/unaddressable); depth tracks
// struct-nesting for MaxNestingDepth.
func (t *Traversal) walkVariable(v *catalog.Variable, name string, origin Origin, depth, derefs int, fn *catalog.Function, isEntry bool, hidden bool, addr uint64) {
	if depth > t.limits.MaxNestingDepth {
		return
	}
	visit := Visit{
		Variable: v, FullyQualified: name, Origin: origin,
		NumDerefs: derefs, LayersBeforeBase: v.PtrLevels,
		Disambig: v.Disambiguation, Func: fn, IsEntry: isEntry, Hidden: hidden,
		ValueAddr: addr,
	}

	switch {
	case len(v.ArrayDims) > 0 && v.PtrLevels == 0:
		t.walkArray(v, name, fn, isEntry, hidden, addr)
		return
	case v.PtrLevels > 0:
		action := t.action(visit)
		if action == ActionStopTraversal || action == ActionDoNotDerefMorePointers || action == ActionDisregardPtrDerefs {
			return
		}
		if derefs >= t.limits.MaxPointerDerefs {
			return
		}
		child := *v
		child.PtrLevels--
		target := t.readPointer(addr)
		t.walkVariable(&child, name, OriginDerived, depth, derefs+1, fn, isEntry, hidden, target)
		return
	case v.Type != nil && v.Type.Kind == catalog.KindStructOrClass:
		t.action(visit) // base struct visit itself carries no printable value
		t.walkStruct(v, name, depth, fn, isEntry, hidden, addr)
		return
	default:
		t.action(visit)
	}
}

// walkArray implements array flattening (spec.md §4.7): an array yields a
// single sequence visit whose NumElts is the product of every dimension's
// UpperBound+1 (M*N for T[M][N]). A multidimensional array is not split
// into per-leaf or per-row visits. addr is the array's own base address;
// elements are addr + k*eltSize.
func (t *Traversal) walkArray(v *catalog.Variable, name string, fn *catalog.Function, isEntry bool, hidden bool, addr uint64) {
	total := 1
	for _, d := range v.ArrayDims {
		total *= d.UpperBound + 1
	}
	eltSize := 1
	if v.Type != nil {
		eltSize = v.Type.ByteSize
		if eltSize == 0 {
			eltSize = 1
		}
	}
	visit := Visit{
		Variable: v, FullyQualified: name, Origin: OriginDerivedFlattenedArray,
		Func: fn, IsEntry: isEntry, Hidden: hidden,
		IsSequence: true, NumElts: total, EltStride: eltSize,
		ValueAddr: addr,
	}
	t.action(visit)
}

// walkStruct implements struct/class field expansion and transitive
// superclass flattening (spec.md §4.7). addr is v's own (already
// dereferenced, if v is a pointer) base address; fields live at
// addr + field.ByteOffset.
func (t *Traversal) walkStruct(v *catalog.Variable, namePrefix string, depth int, fn *catalog.Function, isEntry bool, hidden bool, addr uint64) {
	typ := v.Type
	if typ == nil || t.visitedTypes[typ] {
		return
	}
	if depth >= t.limits.MaxStructDepth {
		return
	}
	t.visitedTypes[typ] = true
	defer delete(t.visitedTypes, typ)

	sep := "."
	if v.PtrLevels > 0 {
		sep = "->"
	}
	fieldAddr := func(f *catalog.Variable) uint64 {
		if addr == 0 {
			return 0
		}
		return addr + uint64(f.ByteOffset)
	}
	for _, f := range typ.Fields {
		if f.IsStatic {
			continue
		}
		fname := namePrefix + sep + f.Name
		t.walkVariable(f, fname, OriginDerived, depth+1, 0, fn, isEntry, hidden, fieldAddr(f))
	}
	supers := append([]*catalog.Type{}, typ.Superclasses...)
	for len(supers) > 0 {
		super := supers[0]
		supers = append(supers[1:], super.Superclasses...)
		for _, f := range super.Fields {
			if f.IsStatic {
				continue
			}
			fname := namePrefix + sep + f.Name
			t.walkVariable(f, fname, OriginDerived, depth+1, 0, fn, isEntry, true, fieldAddr(f))
		}
	}
}
