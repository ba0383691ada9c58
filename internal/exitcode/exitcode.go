// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package exitcode centralizes the process exit codes the daemon and CLI
// use for fatal conditions, mirroring the distinct per-failure codes the
// original rbackupd daemon assigned instead of collapsing everything to 1.
package exitcode

const (
	// OK is a normal, successful exit.
	OK = 0

	// KeyboardInterrupt is used when the process is aborted by SIGINT.
	// A plain SIGTERM is treated as a requested shutdown and exits OK.
	KeyboardInterrupt = 2

	// ReplicatorFailed is used when the external replicator exits non-zero.
	ReplicatorFailed = 3

	// ConfigMissingKeep is used when an interval has no corresponding "keep" entry.
	ConfigMissingKeep = 9

	// ConfigMissingKeepAge is used when an interval has no corresponding "keep_age" entry.
	ConfigMissingKeepAge = 10

	// ConfigInvalid is used for any other configuration inconsistency
	// (e.g. keys(intervals) != keys(keep)) detected at load time.
	ConfigInvalid = 11

	// FSFailure is used when a filesystem primitive (symlink/move/remove)
	// fails in a way that cannot be locally recovered from. cmd/snapbackupd
	// also exits with it for any error that carries no exit code of its own,
	// such as an unreadable or unparsable config file.
	FSFailure = 12

	// AssertionFailed is used for logically impossible states, such as
	// unregistering an unknown snapshot from the in-memory index.
	AssertionFailed = 70
)
