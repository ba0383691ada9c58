// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Command snapbackupd is the scheduled, hardlink-based snapshot backup
// daemon. See internal/cli for the command tree.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hkoerber/snapbackupd/internal/cli"
	"github.com/hkoerber/snapbackupd/internal/exitcode"
)

// exitCoder is implemented by every typed error in internal/repository
// that carries a dedicated exit code (ConfigError, ReplicatorError,
// AssertionError).
type exitCoder interface {
	ExitCode() int
}

func main() {
	err := cli.Execute()
	if err == nil {
		os.Exit(exitcode.OK)
	}

	fmt.Fprintln(os.Stderr, "snapbackupd:", err)

	var ec exitCoder
	if errors.As(err, &ec) {
		os.Exit(ec.ExitCode())
	}
	os.Exit(exitcode.FSFailure)
}
