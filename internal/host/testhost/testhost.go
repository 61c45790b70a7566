// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testhost is a deterministic, in-process implementation of
// host.Host. It backs the core's unit tests and the `dyncomp demo`
// subcommand, standing in for the out-of-scope dynamic binary translator.
package testhost

import (
	"dyncomp/internal/host"
	"dyncomp/internal/tag"
)

// byteState tracks the A/V bits for one guest byte.
type byteState struct {
	allocated, initialized bool
	value                  byte
}

// Host is a flat guest address space plus one Registers shadow per thread.
type Host struct {
	mem map[uint64]*byteState
	pc  uint64
	reg map[int]*regShadow
	// spOffset/fpOffset name the register offsets that get weak-fresh
	// treatment, mirroring the real host's SP/FP special case.
	spOffset, fpOffset int
}

// New returns an empty host. spOffset and fpOffset identify the register
// offsets that behave as stack and frame pointers.
func New(spOffset, fpOffset int) *Host {
	return &Host{
		mem:      make(map[uint64]*byteState),
		reg:      make(map[int]*regShadow),
		spOffset: spOffset,
		fpOffset: fpOffset,
	}
}

func (h *Host) at(addr uint64) *byteState {
	b, ok := h.mem[addr]
	if !ok {
		b = &byteState{}
		h.mem[addr] = b
	}
	return b
}

// WriteByte stores a defined, allocated byte value at addr -- the testhost
// equivalent of the guest program executing a store.
func (h *Host) WriteByte(addr uint64, v byte) {
	b := h.at(addr)
	b.allocated = true
	b.initialized = true
	b.value = v
}

// Allot marks addr allocated but leaves it uninitialized (e.g. malloc
// without a store), exercising the "uninit" rendering path in package
// trace.
func (h *Host) Allot(addr uint64) {
	h.at(addr).allocated = true
}

func (h *Host) Allocated(addr uint64) bool {
	b, ok := h.mem[addr]
	return ok && b.allocated
}

func (h *Host) Initialized(addr uint64) bool {
	b, ok := h.mem[addr]
	return ok && b.allocated && b.initialized
}

func (h *Host) ReadByte(addr uint64) byte {
	if b, ok := h.mem[addr]; ok {
		return b.value
	}
	return 0
}

func (h *Host) SetPC(pc uint64)                 { h.pc = pc }
func (h *Host) CurrentInstructionPointer() uint64 { return h.pc }

func (h *Host) Registers(thread int) host.Registers {
	r, ok := h.reg[thread]
	if !ok {
		r = &regShadow{tags: make(map[int]tag.Tag), sp: h.spOffset, fp: h.fpOffset}
		h.reg[thread] = r
	}
	return r
}

func (h *Host) Threads() []int {
	out := make([]int, 0, len(h.reg))
	for t := range h.reg {
		out = append(out, t)
	}
	return out
}

// regShadow is a sparse, map-backed register tag shadow for one thread.
type regShadow struct {
	tags   map[int]tag.Tag
	sp, fp int
}

func (r *regShadow) GetTag(offset int) tag.Tag {
	if r.IsStackPointer(offset) || r.IsFramePointer(offset) {
		return tag.Max
	}
	return r.tags[offset]
}

func (r *regShadow) SetTag(offset int, t tag.Tag) {
	if r.IsStackPointer(offset) || r.IsFramePointer(offset) {
		// Puts into SP/FP are suppressed (spec.md §4.4).
		return
	}
	r.tags[offset] = t
}

func (r *regShadow) IsStackPointer(offset int) bool { return offset == r.sp }
func (r *regShadow) IsFramePointer(offset int) bool { return offset == r.fp }

func (r *regShadow) Walk(f func(offset int, t tag.Tag)) {
	for off, t := range r.tags {
		f(off, t)
	}
}
