// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host defines the boundary between the core (this module) and the
// external dynamic binary translator that spec.md §1 places out of scope:
// the component that lifts guest instructions to IR, shadows guest
// registers, schedules instrumented blocks, and dispatches syscalls.
//
// The core only ever needs four things from that collaborator, and they are
// captured here as the Host and Registers interfaces: per-byte
// allocated/initialized bits, the current instruction pointer, per-thread
// register-tag storage, and readable access to guest memory bytes (for
// string rendering and struct/array traversal in package trace/traverse).
package host

import "dyncomp/internal/tag"

// Host is the read side of the DBI boundary: everything the trace emitter
// and variable traversal need to know about the guest process's memory.
type Host interface {
	// Allocated reports whether addr is allocated guest memory (the "A" bit).
	Allocated(addr uint64) bool
	// Initialized reports whether addr holds a defined value (the "V" bit).
	// Only meaningful when Allocated(addr) is true.
	Initialized(addr uint64) bool
	// ReadByte returns the guest byte at addr. Behavior is undefined if
	// Allocated(addr) is false; callers must check first.
	ReadByte(addr uint64) byte
	// CurrentInstructionPointer returns the guest PC of the thread
	// currently executing instrumented code.
	CurrentInstructionPointer() uint64
	// Registers returns the register-tag shadow for the given guest
	// thread id.
	Registers(thread int) Registers
	// Threads lists every guest thread id with a live register shadow, for
	// the garbage collector's register sweep (spec.md §4.6 step 5).
	Threads() []int
}

// Registers is the per-thread register tag shadow (spec.md §4.4's "guest
// register tags"). Implementations are responsible for whatever physical
// layout they choose (spec.md §9's open question on shadow layout); the
// core only calls Get/Set and asks whether an offset names SP or FP, since
// those two get the weak-fresh special case.
type Registers interface {
	GetTag(offset int) tag.Tag
	SetTag(offset int, t tag.Tag)
	IsStackPointer(offset int) bool
	IsFramePointer(offset int) bool
	// Walk visits every tracked (offset, tag) pair currently shadowed for
	// this thread; used by the garbage collector's register sweep.
	Walk(func(offset int, t tag.Tag))
}
