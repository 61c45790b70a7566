// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"fmt"
	"io"

	"dyncomp/internal/catalog"
	"dyncomp/internal/ppt"
	"dyncomp/internal/tag"
	"dyncomp/internal/traverse"
)

// DeclEmitter owns the declarations-file half of the wire protocol
// (spec.md §6): sizing and registering each program point's Point ahead of
// execution, then -- once the program has finished and component J's final
// traversal has stabilized every comparability class -- writing out the
// "ppt .../var .../comparability N" blocks.
type DeclEmitter struct {
	Table             *ppt.Table
	Limits            traverse.Limits
	ObjectPpts        bool // gate object-ppt emission (spec.md §6 / SPEC_FULL.md §4)
	SeparateEntryExit bool // --dyncomp-separate-entry-exit: don't tie entry/exit comparability

	funcs map[string]*catalog.Function
}

// NewDeclEmitter constructs a DeclEmitter over the shared program point
// table.
func NewDeclEmitter(table *ppt.Table, limits traverse.Limits, objectPpts, separateEntryExit bool) *DeclEmitter {
	return &DeclEmitter{
		Table: table, Limits: limits,
		ObjectPpts: objectPpts, SeparateEntryExit: separateEntryExit,
		funcs: make(map[string]*catalog.Function),
	}
}

func (d *DeclEmitter) walk(fn *catalog.Function, isEntry bool) []traverse.Visit {
	var visits []traverse.Visit
	tr := traverse.New(nil, nil, d.Limits, func(v traverse.Visit) traverse.Action {
		visits = append(visits, v)
		return traverse.ActionDerefMorePointers
	})
	tr.Walk(fn, isEntry)
	return visits
}

// DeclarePpt runs the structural traversal once, before any execution, to
// count fn's variables at this ppt and register the corresponding Point
// (spec.md §3: "created when the declarations pass counts variables at
// that point"). detailed selects the O(n^2) bitmatrix mode for this ppt.
func (d *DeclEmitter) DeclarePpt(fn *catalog.Function, isEntry bool, detailed bool) *ppt.Point {
	d.funcs[fn.Name] = fn
	visits := d.walk(fn, isEntry)
	key := ppt.Key{Function: fn.Name, Entry: isEntry}
	return d.Table.Declare(key, len(visits), detailed)
}

// pptLabel renders the ":::ENTER" / ":::EXIT0" / ":::OBJECT" suffix spec.md
// §6 uses to name a program point.
func pptLabel(fn *catalog.Function, isEntry bool) string {
	if isEntry {
		return fn.Name + ":::ENTER"
	}
	return fn.Name + ":::EXIT0"
}

// objectPptLabel names the synthetic OBJECT ppt a class's instance
// variables are declared under (SPEC_FULL.md §4's object-ppt supplement).
func objectPptLabel(classType *catalog.Type) string {
	return classType.Name + ":::OBJECT"
}

// EmitDeclarations writes the complete declarations file: every registered
// program point's block, each variable's parent/rep-type/dec-type/flags/
// comparability lines, and -- when enabled -- one OBJECT block per class
// with instance fields. arena resolves a variable's final tag to its
// global leader.
//
// By default (SeparateEntryExit false) entry and exit comparability
// numbers for the same variable are tied together by emitting only the
// exit side (spec.md §4.8): the exit ppt's own leader-derived numbering is
// computed first, and the entry ppt then reuses exit's number for every
// variable name it shares with exit, rather than recomputing an
// independent number off its own (possibly different) leader. A variable
// with no exit-side counterpart -- or every ppt, when SeparateEntryExit is
// set -- still gets a number from its own leader.
func (d *DeclEmitter) EmitDeclarations(w io.Writer, arena ppt.Arena) error {
	emittedObjects := make(map[*catalog.Type]bool)
	exitNumbers := make(map[string]map[string]int) // function name -> variable name -> comparability number

	if !d.SeparateEntryExit {
		for _, key := range d.Table.Keys() {
			if key.Entry {
				continue
			}
			fn, ok := d.funcs[key.Function]
			if !ok {
				continue
			}
			exitNumbers[fn.Name] = d.pptComparabilityByName(key, fn, arena)
		}
	}

	for _, key := range d.Table.Keys() {
		p, _ := d.Table.Get(key)
		fn, ok := d.funcs[key.Function]
		if !ok {
			continue
		}

		if d.ObjectPpts && fn.ParentClass != nil && len(fn.ParentClass.Fields) > 0 && !emittedObjects[fn.ParentClass] {
			emittedObjects[fn.ParentClass] = true
			d.emitObjectPpt(w, fn.ParentClass)
		}

		tied := exitNumbers[fn.Name]
		baseOffset := len(tied) // numbers already claimed by the tied exit ppt
		var detailedClasses []int
		if p.Detailed {
			detailedClasses = p.DetailedClasses()
		}
		compMap := make(map[compKey]int)

		visits := d.walk(fn, key.Entry)
		fmt.Fprintln(w, "ppt", pptLabel(fn, key.Entry))
		fmt.Fprintln(w, "ppt-type", pptKind(key.Entry))
		for i, v := range visits {
			n, ok := tied[v.FullyQualified]
			if !ok {
				// No exit-side counterpart (or tying is off): number it off
				// this ppt's own leader, offset past every number the tied
				// exit ppt already claimed so the two numbering spaces never
				// collide.
				n = baseOffset + d.comparabilityNumber(p, arena, compMap, i, detailedClasses)
				if tied != nil {
					tied[v.FullyQualified] = n
				}
			}
			d.emitVariable(w, n, v)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// pptComparabilityByName computes one ppt's own leader-derived comparability
// numbers and returns them keyed by variable name, for the entry/exit tying
// pre-pass: the exit ppt's numbering is authoritative, so it must be
// resolved before the matching entry ppt is emitted.
func (d *DeclEmitter) pptComparabilityByName(key ppt.Key, fn *catalog.Function, arena ppt.Arena) map[string]int {
	p, ok := d.Table.Get(key)
	if !ok {
		return nil
	}
	var detailedClasses []int
	if p.Detailed {
		detailedClasses = p.DetailedClasses()
	}
	compMap := make(map[compKey]int)
	names := make(map[string]int)
	for i, v := range d.walk(fn, key.Entry) {
		names[v.FullyQualified] = d.comparabilityNumber(p, arena, compMap, i, detailedClasses)
	}
	return names
}

func pptKind(isEntry bool) string {
	if isEntry {
		return "enter"
	}
	return "subexit"
}

// emitObjectPpt writes the OBJECT ppt's declaration block: one entry per
// non-static field of classType, gated entirely by d.ObjectPpts (spec.md
// §6, SPEC_FULL.md §4's object-ppt supplement). Object ppts are declared
// structurally only -- they have no comparability numbers of their own,
// since they never execute independently.
func (d *DeclEmitter) emitObjectPpt(w io.Writer, classType *catalog.Type) {
	fmt.Fprintln(w, "ppt", objectPptLabel(classType))
	fmt.Fprintln(w, "ppt-type", "object")
	for _, f := range classType.Fields {
		if f.IsStatic {
			continue
		}
		fmt.Fprintln(w, "variable", EscapeName(f.Name))
		fmt.Fprintln(w, "  dec-type", declTypeFor(f))
		fmt.Fprintln(w, "  rep-type", repTypeFor(f).String())
		fmt.Fprintln(w, "  flags", fieldFlags(f))
	}
	fmt.Fprintln(w)
}

func fieldFlags(v *catalog.Variable) string {
	if v.IsString {
		return "is_param"
	}
	return "none"
}

// emitVariable writes one variable's full declaration block, including the
// "enclosing-var" line for a hidden (flattened) member and its
// already-resolved comparability number n. No "parent" line is written.
func (d *DeclEmitter) emitVariable(w io.Writer, n int, v traverse.Visit) {
	fmt.Fprintln(w, "variable", EscapeName(v.FullyQualified))
	if v.Hidden {
		fmt.Fprintln(w, "  enclosing-var", "this")
	}
	if v.Variable.PtrLevels > 0 {
		fmt.Fprintln(w, "  reference-type", "offset")
	}
	if v.IsSequence {
		fmt.Fprintln(w, "  array", "1")
	}
	fmt.Fprintln(w, "  dec-type", declTypeFor(v.Variable))
	fmt.Fprintln(w, "  rep-type", repTypeFor(v.Variable).String())
	fmt.Fprintln(w, "  flags", fieldFlags(v.Variable))
	fmt.Fprintln(w, "  comparability", n)
}

// compKey distinguishes the two sources a comparability number can be
// numbered from, so a detailed-mode bitmatrix class id never collides with
// an M-based leader tag that happens to share the same bit pattern.
type compKey struct {
	detailed bool
	leader   tag.Tag
	class    int
}

// comparabilityNumber implements the final declarations pass's numbering
// rule (spec.md §4.8, component J): variable i's comparability number is a
// dense per-ppt index assigned on first sight in traversal order. In
// default mode the key is the M-based global leader (spec.md §4.8); in
// detailed mode (spec.md §4.5) it is instead the bitmatrix-derived class id
// detailedClasses[i], since M is never maintained for a detailed ppt
// (package ppt's Observe skips it entirely). A variable that was never
// observed in default mode (V[i] == 0) gets its own singleton number, since
// "never observed" still means "not known comparable to anything".
func (d *DeclEmitter) comparabilityNumber(p *ppt.Point, arena ppt.Arena, compMap map[compKey]int, i int, detailedClasses []int) int {
	var key compKey
	if p.Detailed {
		key = compKey{detailed: true, class: detailedClasses[i]}
	} else {
		leader := p.Leader(arena, i)
		if leader == tag.Zero {
			// Synthesize a private key so two never-observed variables don't
			// collide on tag.Zero and appear spuriously comparable.
			leader = tag.Tag(1<<31) + tag.Tag(i)
		}
		key = compKey{leader: leader}
	}
	if n, ok := compMap[key]; ok {
		return n
	}
	n := len(compMap) + 1
	compMap[key] = n
	return n
}
