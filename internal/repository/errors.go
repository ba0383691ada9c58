// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"fmt"

	"github.com/hkoerber/snapbackupd/internal/exitcode"
	"github.com/hkoerber/snapbackupd/internal/replicator"
)

// ConfigError reports a configuration inconsistency detected at Open or
// Validate time: an interval missing its keep/keep_age counterpart. It
// carries a distinct exit code per missing field, matching the two
// separate exit codes the original daemon assigned to these two cases.
// internal/config also returns it, with exitcode.ConfigInvalid, for a
// keep/keep_age entry that names no configured interval.
type ConfigError struct {
	Interval string
	Reason   string
	Code     int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("repository config: interval %q: %s", e.Interval, e.Reason)
}

func (e *ConfigError) ExitCode() int { return e.Code }

func errMissingKeep(interval string) error {
	return &ConfigError{Interval: interval, Reason: "no corresponding keep entry", Code: exitcode.ConfigMissingKeep}
}

func errMissingKeepAge(interval string) error {
	return &ConfigError{Interval: interval, Reason: "no corresponding keep_age entry", Code: exitcode.ConfigMissingKeepAge}
}

// ReplicatorError reports a fatal, non-zero exit from the external
// replicator during snapshot creation. The partially-created snapshot
// directory is left in place (it has no meta file yet) for operator
// inspection; the caller is expected to terminate the current tick with
// ExitCode().
type ReplicatorError struct {
	Interval string
	Source   string
	Result   replicator.Result
}

func (e *ReplicatorError) Error() string {
	return fmt.Sprintf("replicator failed for interval %q, source %q: exit %d: %s",
		e.Interval, e.Source, e.Result.ExitCode, e.Result.Stderr)
}

func (e *ReplicatorError) ExitCode() int { return exitcode.ReplicatorFailed }

// AssertionError reports a logically impossible state, such as
// unregistering a snapshot that is not in the index. These are programmer
// errors, not operational conditions, per spec.md §7's disposition table.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return "assertion failed: " + e.Msg }

func (e *AssertionError) ExitCode() int { return exitcode.AssertionFailed }
