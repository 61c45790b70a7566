// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dyncomp/internal/irpass"
)

func TestBindFlagsDefaults(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	o := BindFlags(cmd)
	assert.Equal(t, "dyncomp.decls", o.DeclsFile)
	assert.Equal(t, "dyncomp.dtrace", o.DtraceFile)
	assert.True(t, o.DynComp)
	assert.Equal(t, uint64(1_000_000), o.GCNumTags)
	assert.Equal(t, "all", o.Interactions)
}

func TestValidateRejectsUnknownInteractions(t *testing.T) {
	o := defaults()
	o.Interactions = "bogus"
	assert.Error(t, o.Validate())
}

func TestValidateAcceptsKnownInteractions(t *testing.T) {
	o := defaults()
	o.Interactions = "units"
	require.NoError(t, o.Validate())
	assert.Equal(t, irpass.ModeUnits, o.Mode())
}

func TestValidateFormatVersionConstraint(t *testing.T) {
	o := defaults()
	o.FormatVersionRequired = "v1.0.0"
	assert.NoError(t, o.Validate(), "this core's v2.0.0 satisfies a v1.0.0 floor")

	o.FormatVersionRequired = "v9.9.9"
	assert.Error(t, o.Validate(), "this core cannot satisfy a floor above its own version")

	o.FormatVersionRequired = "not-a-version"
	assert.Error(t, o.Validate())
}

func TestApplyEnvOverridesFromEnvironment(t *testing.T) {
	o := defaults()
	t.Setenv("DTRACEAPPEND", "true")
	t.Setenv("DTRACEGZIP", "1")
	o.ApplyEnv()
	assert.True(t, o.DtraceAppend)
	assert.True(t, o.DtraceGzip)
}
