// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irpass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"dyncomp/internal/shadow"
	"dyncomp/internal/tag"
	"dyncomp/internal/tagops"
)

func newEngine(t *testing.T) *tagops.Engine {
	t.Helper()
	return tagops.New(tag.NewArena(), shadow.New(0), 0, nil)
}

func TestClassifyKnownOpcodes(t *testing.T) {
	tests := []struct {
		name string
		op   x86asm.Op
		mode Mode
		want Policy
	}{
		{"add under all", x86asm.ADD, ModeAll, PolicyMergeBoth},
		{"add under dataflow-only", x86asm.ADD, ModeDataflow, PolicyResultZero},
		{"add under dataflow-comparisons", x86asm.ADD, ModeComparisons, PolicyResultZero},
		{"mul under all", x86asm.IMUL, ModeAll, PolicyMergeBoth},
		{"mul under units-only", x86asm.IMUL, ModeUnits, PolicyResultZero},
		{"mul under dataflow-comparisons", x86asm.IMUL, ModeComparisons, PolicyResultZero},
		{"cmp under all", x86asm.CMP, ModeAll, PolicyMergeBothReturn0},
		{"cmp under dataflow-only", x86asm.CMP, ModeDataflow, PolicyResultZero},
		{"cmp under dataflow-comparisons still merges", x86asm.CMP, ModeComparisons, PolicyMergeBothReturn0},
		{"shift under all", x86asm.SHL, ModeAll, PolicyPassFirst},
		{"shift under dataflow-only", x86asm.SHL, ModeDataflow, PolicyPassFirst},
		{"rounding conversion", x86asm.CVTSI2SD, ModeAll, PolicyPassSecond},
		{"unknown opcode", x86asm.Op(0), ModeAll, PolicyResultZero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.op, tt.mode))
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"all", ModeAll, true},
		{"units", ModeUnits, true},
		{"comparisons", ModeComparisons, true},
		{"none", ModeDataflow, true},
		{"bogus", ModeAll, false},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		assert.Equal(t, tt.want, got)
		if tt.ok {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err)
		}
	}
}

func TestEvalAddMergesOperands(t *testing.T) {
	e := newEngine(t)
	a := e.CreateTag(0)
	b := e.CreateTag(0)
	result := Eval(e, x86asm.ADD, ModeAll, a, b)
	assert.Equal(t, e.Arena.Find(a), e.Arena.Find(b), "add interacts its operands")
	assert.Equal(t, result, e.Arena.Find(a))
}

func TestEvalCompareMergesButReturnsZero(t *testing.T) {
	e := newEngine(t)
	a := e.CreateTag(0)
	b := e.CreateTag(0)
	result := Eval(e, x86asm.CMP, ModeAll, a, b)
	assert.Equal(t, tag.Zero, result)
	assert.Equal(t, e.Arena.Find(a), e.Arena.Find(b), "a compare still interacts its operands, just returns 0")
}

func TestEvalUnderDataflowComparisonsSuppressesAddButKeepsCompare(t *testing.T) {
	e := newEngine(t)
	a := e.CreateTag(0)
	b := e.CreateTag(0)
	addResult := Eval(e, x86asm.ADD, ModeComparisons, a, b)
	assert.Equal(t, tag.Zero, addResult)
	assert.NotEqual(t, e.Arena.Find(a), e.Arena.Find(b), "dataflow-comparisons must suppress the add/sub interaction entirely")

	c := e.CreateTag(0)
	d := e.CreateTag(0)
	cmpResult := Eval(e, x86asm.CMP, ModeComparisons, c, d)
	assert.Equal(t, tag.Zero, cmpResult)
	assert.Equal(t, e.Arena.Find(c), e.Arena.Find(d), "dataflow-comparisons must still merge a compare's operands")
}

func TestEvalShiftPassesFirstUnchanged(t *testing.T) {
	e := newEngine(t)
	a := e.CreateTag(0)
	b := e.CreateTag(0)
	result := Eval(e, x86asm.SHL, ModeAll, a, b)
	assert.Equal(t, a, result)
	assert.NotEqual(t, e.Arena.Find(a), e.Arena.Find(b), "a shift by a variable count must not interact the two operands")
}

func TestEvalFMAMergesSecondAndThirdOnly(t *testing.T) {
	e := newEngine(t)
	rounding := e.CreateTag(0)
	x := e.CreateTag(0)
	y := e.CreateTag(0)
	result := EvalFMA(e, rounding, x, y)
	assert.Equal(t, e.Arena.Find(x), e.Arena.Find(y))
	assert.NotEqual(t, e.Arena.Find(rounding), e.Arena.Find(x), "the rounding-mode operand never interacts")
	assert.Equal(t, result, e.Arena.Find(x))
}

func TestEvalLoadIgnoresAddressTag(t *testing.T) {
	e := newEngine(t)
	addrTag := e.CreateTag(0)
	valTag := e.CreateTag(0)
	require.NoError(t, e.StoreTagN(0x800, 4, valTag))
	result := EvalLoad(e, addrTag, 0x800, 4)
	assert.Equal(t, e.Arena.Find(valTag), result)
	assert.NotEqual(t, e.Arena.Find(addrTag), result)
}
