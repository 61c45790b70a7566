// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"dyncomp/internal/catalog"
	"dyncomp/internal/host"
	"dyncomp/internal/ppt"
	"dyncomp/internal/tag"
	"dyncomp/internal/tagops"
	"dyncomp/internal/traverse"
)

// modification-bit values (spec.md §6): 1 means the value is present and
// was observed defined, 2 covers both "nonsensical" (unaddressable or never
// allocated) and "uninit" (allocated but never written).
const (
	modInitialized = "1"
	modUninit      = "2"
)

// Emitter renders the values (dtrace) record for one executed program
// point and drives the per-variable observation loop (component F) over
// the rendered variables (spec.md §4.8, §6).
type Emitter struct {
	Host   host.Host
	AddrOf traverse.AddrFunc // resolves each top-level variable's address for the current execution
	Tags   *tagops.Engine
	Table  *ppt.Table
	Limits traverse.Limits
}

// NewEmitter constructs an Emitter over the process-wide singletons.
// addrOf supplies each top-level formal/local/return's guest address for
// the execution currently being emitted (spec.md §9's "virtual stack").
func NewEmitter(h host.Host, addrOf traverse.AddrFunc, tags *tagops.Engine, table *ppt.Table, limits traverse.Limits) *Emitter {
	return &Emitter{Host: h, AddrOf: addrOf, Tags: tags, Table: table, Limits: limits}
}

// walk collects every visit the traversal produces for fn at this ppt, in
// the same fixed order package decls.go uses to size the Point; the two
// must agree for VarTags[i] to mean the same variable across calls.
func (e *Emitter) walk(fn *catalog.Function, isEntry bool) []traverse.Visit {
	var visits []traverse.Visit
	tr := traverse.New(e.Host, e.AddrOf, e.Limits, func(v traverse.Visit) traverse.Action {
		visits = append(visits, v)
		return traverse.ActionDerefMorePointers
	})
	tr.Walk(fn, isEntry)
	return visits
}

// EmitProgramPoint renders one executed program-point record into the
// values stream: the ppt-name line, one name/value/mod-bit triple per
// visited variable, and the blank-line terminator (spec.md §6). Each
// variable is then fed into the ppt's observation loop (component F) so
// comparability classes stay current for the final pass.
func (e *Emitter) EmitProgramPoint(w io.Writer, fn *catalog.Function, isEntry bool, pptLabel string) error {
	key := ppt.Key{Function: fn.Name, Entry: isEntry}
	p, ok := e.Table.Get(key)
	if !ok {
		return errors.Errorf("trace: no declared program point for %s", pptLabel)
	}

	visits := e.walk(fn, isEntry)
	if len(visits) != p.NumVars {
		return errors.Errorf("trace: %s: traversal produced %d variables, %d declared", pptLabel, len(visits), p.NumVars)
	}

	fmt.Fprintln(w, pptLabel)
	for i, v := range visits {
		name, rendered, modBit := e.renderVisit(v)
		fmt.Fprintln(w, EscapeName(name))
		fmt.Fprintln(w, rendered)
		fmt.Fprintln(w, modBit)
		e.observe(p, i, v)
	}
	fmt.Fprintln(w)

	p.FinishExecution()
	return nil
}

// renderVisit formats one visited variable's value/mod-bit pair.
func (e *Emitter) renderVisit(v traverse.Visit) (name, value, modBit string) {
	name = v.FullyQualified
	if v.IsSequence {
		value, modBit = e.renderSequence(v)
		return name, value, modBit
	}
	if v.ValueAddr == 0 || !e.Host.Allocated(v.ValueAddr) {
		return name, "nonsensical", modUninit
	}
	if !e.Host.Initialized(v.ValueAddr) {
		return name, "uninit", modUninit
	}
	return name, e.renderScalar(v), modInitialized
}

// byteSizeOf returns the storage width backing v's current indirection
// level: a pointer's own stored bits are always 8 bytes, regardless of
// what it points to.
func byteSizeOf(v *catalog.Variable) int {
	if v.PtrLevels > 0 {
		return 8
	}
	if v.Type != nil && v.Type.ByteSize > 0 {
		return v.Type.ByteSize
	}
	return 4
}

func (e *Emitter) readBytes(addr uint64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = e.Host.ReadByte(addr + uint64(i))
	}
	return b
}

func (e *Emitter) readUint(addr uint64, n int) uint64 {
	var v uint64
	b := e.readBytes(addr, n)
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// readInt sign-extends an n-byte little-endian integer read from addr.
func (e *Emitter) readInt(addr uint64, n int) int64 {
	u := e.readUint(addr, n)
	if n >= 8 {
		return int64(u)
	}
	shift := uint(64 - 8*n)
	return int64(u<<shift) >> shift
}

// readCString reads a NUL-terminated byte string starting at addr, up to a
// defensive cap matching the reference tool's guard against a corrupted
// or unterminated guest string.
func (e *Emitter) readCString(addr uint64) string {
	const maxLen = 4096
	var b strings.Builder
	for i := 0; i < maxLen; i++ {
		c := e.Host.ReadByte(addr + uint64(i))
		if c == 0 {
			break
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isUnsignedKind(k catalog.TypeKind) bool {
	return k == catalog.KindUnsignedChar || k == catalog.KindBool
}

// renderScalar formats an initialized, non-sequence variable's value per
// its rep-type (spec.md §6's printf-style value conventions).
func (e *Emitter) renderScalar(v traverse.Visit) string {
	va := v.Variable
	switch repTypeFor(va) {
	case RepHashcode:
		ptrVal := e.readUint(v.ValueAddr, 8)
		return strconv.FormatUint(ptrVal, 10)
	case RepString:
		base := v.ValueAddr
		if va.PtrLevels > 0 {
			base = e.readUint(v.ValueAddr, 8)
		}
		if base == 0 {
			return "nonsensical"
		}
		return `"` + EscapeStringLiteral(e.readCString(base)) + `"`
	case RepBoolean:
		if e.Host.ReadByte(v.ValueAddr) != 0 {
			return "true"
		}
		return "false"
	case RepDouble:
		return e.renderFloat(va, v.ValueAddr, byteSizeOf(va))
	default:
		if va.Type != nil && isUnsignedKind(va.Type.Kind) {
			return strconv.FormatUint(e.readUint(v.ValueAddr, byteSizeOf(va)), 10)
		}
		return strconv.FormatInt(e.readInt(v.ValueAddr, byteSizeOf(va)), 10)
	}
}

// renderFloat formats a float/double value using the fixed printf-style
// conversion spec.md §6 mandates for the variable's base type (printfFormat),
// rather than an independently chosen strconv precision.
func (e *Emitter) renderFloat(va *catalog.Variable, addr uint64, size int) string {
	format := printfFormat(va)
	if size <= 4 {
		bits := uint32(e.readUint(addr, 4))
		return fmt.Sprintf(format, float64(math.Float32frombits(bits)))
	}
	bits := e.readUint(addr, 8)
	return fmt.Sprintf(format, math.Float64frombits(bits))
}

// renderSequence formats an array/sequence visit as "[ v0 v1 ... ]" followed
// by a single trailing modification bit for the whole sequence (spec.md
// §6/§4.8), not one bit per element. Elements that were never allocated or
// never initialized still render as the scalar placeholder
// "nonsensical"/"uninit" in their own slot rather than aborting the whole
// sequence; the sequence-level bit is modInitialized as long as at least one
// element carries a real value, and modUninit only when every element does not.
func (e *Emitter) renderSequence(v traverse.Visit) (value, modBit string) {
	var vb strings.Builder
	vb.WriteString("[")
	anyInitialized := false
	for k := 0; k < v.NumElts; k++ {
		addr := v.ValueAddr + uint64(k*v.EltStride)
		elt := v
		elt.IsSequence = false
		elt.ValueAddr = addr

		var valStr string
		switch {
		case addr == 0 || !e.Host.Allocated(addr):
			valStr = "nonsensical"
		case !e.Host.Initialized(addr):
			valStr = "uninit"
		default:
			valStr = e.renderScalar(elt)
			anyInitialized = true
		}
		vb.WriteString(" ")
		vb.WriteString(valStr)
	}
	vb.WriteString(" ]")
	modBit = modUninit
	if anyInitialized {
		modBit = modInitialized
	}
	return vb.String(), modBit
}

// observe feeds one visited variable's current tag into the ppt's
// observation loop (component F). Sequences merge the tags of every
// initialized element into a single leader first; a static array (spec.md
// §4.8's disambiguation for file-scope arrays rendered purely as a
// hashcode) carries no comparability information and is skipped entirely.
func (e *Emitter) observe(p *ppt.Point, i int, v traverse.Visit) {
	if v.IsSequence {
		if v.Variable.IsStatic {
			return
		}
		if v.ValueAddr == 0 {
			return
		}
		leader := tag.Zero
		for k := 0; k < v.NumElts; k++ {
			addr := v.ValueAddr + uint64(k*v.EltStride)
			if !e.Host.Initialized(addr) {
				continue
			}
			t := e.Tags.LoadTagN(addr, v.EltStride)
			leader = e.Tags.MergeTags(leader, t)
		}
		p.Observe(e.Tags.Arena, i, v.ValueAddr, func(uint64) tag.Tag { return leader })
		return
	}
	if v.ValueAddr == 0 {
		return
	}
	size := byteSizeOf(v.Variable)
	p.Observe(e.Tags.Arena, i, v.ValueAddr, func(addr uint64) tag.Tag {
		return e.Tags.LoadTagN(addr, size)
	})
}
