// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

// Package main is the entry point for the avatar-switch CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// osExit is replaced in tests.
var osExit = os.Exit

func main() {
	osExit(run(os.Args[1:], nil))
}

// run executes the CLI and returns the process exit code.
func run(args []string, deps *SwitchDeps) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, app := newRootCmd(deps)
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		app.report(err)
		return 1
	}
	return 0
}
