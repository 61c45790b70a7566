// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package procexit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// SetExitStatus and AtExit are exercised directly; Exit/Fatal call os.Exit
// and are not callable from within the test process.

func TestSetExitStatusKeepsTheHighestValue(t *testing.T) {
	mu.Lock()
	exitStatus = 0
	mu.Unlock()

	SetExitStatus(1)
	SetExitStatus(0)
	SetExitStatus(2)

	mu.Lock()
	got := exitStatus
	mu.Unlock()
	assert.Equal(t, 2, got)
}

func TestAtExitRegistersInOrder(t *testing.T) {
	mu.Lock()
	atExit = nil
	mu.Unlock()

	var order []int
	AtExit(func() { order = append(order, 1) })
	AtExit(func() { order = append(order, 2) })

	mu.Lock()
	hooks := atExit
	mu.Unlock()
	for _, f := range hooks {
		f()
	}
	assert.Equal(t, []int{1, 2}, order)
}

func TestBenignDoesNotPanicWithoutALogger(t *testing.T) {
	SetLogger(zap.NewNop())
	assert.NotPanics(t, func() { Benign("guest read from unallocated address") })
}
