// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package replicator invokes the external tree-copy tool (conventionally
// rsync) that actually moves bytes. The engine treats the result as opaque:
// exit code 0 is success, anything else is fatal for the current tick.
package replicator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Result holds the captured outcome of one replicator invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the invocation exited 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Request describes one replication of a single source into destination.
type Request struct {
	// Cmd is the executable to run, e.g. "rsync".
	Cmd string
	// Args are extra arguments applied before the filter/link-dest/source/dest.
	Args []string
	// Filter is an opaque filter-spec string (e.g. an rsync --filter rule),
	// inserted as a single argument.
	Filter string
	// LogOpts are extra logging-related arguments (e.g. --log-file=...).
	LogOpts []string
	// LinkRef, if non-empty, names a peer directory whose unchanged files
	// should be hardlinked into Destination via --link-dest.
	LinkRef     string
	Source      string
	Destination string
}

// buildArgs assembles the full argument list in the logical contract order:
// <args...> <log-opts...> <filter-spec> [--link-dest=<link_ref>] <source> <destination>.
func (req Request) buildArgs() []string {
	args := make([]string, 0, len(req.Args)+len(req.LogOpts)+4)
	args = append(args, req.Args...)
	args = append(args, req.LogOpts...)
	if req.Filter != "" {
		args = append(args, req.Filter)
	}
	if req.LinkRef != "" {
		args = append(args, "--link-dest="+req.LinkRef)
	}
	args = append(args, req.Source, req.Destination)
	return args
}

// Replicate runs the configured external command once and captures its
// exit code, stdout and stderr. It never returns a Go error for a
// non-zero exit; that is reported through Result.ExitCode, matching the
// "engine decides what non-zero means" contract in spec.md §4.2. A non-nil
// error means the command could not even be started (e.g. not found in
// PATH), which is a distinct, harder failure than a replication failure.
func Replicate(ctx context.Context, req Request) (Result, error) {
	cmd := exec.CommandContext(ctx, req.Cmd, req.buildArgs()...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run replicator %s: %w", req.Cmd, err)
	}

	return result, nil
}
