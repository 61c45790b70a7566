// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package procexit implements the three-tier error taxonomy spec.md §7
// assigns to this core: programming invariant violations and
// host-framework errors are fatal (log then exit(1)); guest-visible benign
// conditions are logged, if at all, and execution continues; option errors
// are left to the CLI layer's own usage/exit behavior. It mirrors the
// exit-status bookkeeping of the teacher's cmd/go/internal/base package,
// built on zap instead of the standard log package.
package procexit

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	mu         sync.Mutex
	exitStatus int
	atExit     []func()
	logger     *zap.Logger = zap.NewNop()
)

// SetLogger installs the logger fatal/error messages are written through.
// Call once during startup, before any instrumented code runs.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// AtExit registers f to run, in order of registration, when Exit is
// called -- the trace file's clean-close hook lives here (spec.md §7:
// "the trace file is closed cleanly in the exit path").
func AtExit(f func()) {
	mu.Lock()
	defer mu.Unlock()
	atExit = append(atExit, f)
}

// SetExitStatus records the process's eventual exit code without exiting
// immediately, mirroring the teacher's base.SetExitStatus.
func SetExitStatus(n int) {
	mu.Lock()
	defer mu.Unlock()
	if n > exitStatus {
		exitStatus = n
	}
}

// Exit runs every AtExit hook, then terminates the process with the
// recorded exit status.
func Exit() {
	mu.Lock()
	hooks := atExit
	status := exitStatus
	mu.Unlock()
	for _, f := range hooks {
		f()
	}
	os.Exit(status)
}

// Fatal reports a programming invariant violation or host-framework error
// (spec.md §7's first two categories): tag arena overflow, shadow
// primary-index overflow, union-find corruption, a missing host tool
// function, or a trace-file I/O error. It logs one line to the debug
// channel and terminates with exit(1).
func Fatal(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
	SetExitStatus(1)
	Exit()
}

// Benign logs a guest-visible benign condition (an uninitialized byte
// read, an unallocated address, a garbage string pointer) at debug level
// and returns, letting the caller continue per spec.md §7's third
// category -- these are not exit(1) conditions, just reasons the emitter
// falls back to "nonsensical" or "uninit".
func Benign(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}
