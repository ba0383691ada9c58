// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package metafile implements the per-snapshot meta record codec: a
// fixed three-line text file (name, date, interval) that marks a snapshot
// directory as finalized once it exists alongside the data/ subdirectory.
package metafile

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DateFormat is the fixed on-disk date layout, matching both the folder
// name pattern and the meta file's second line.
const DateFormat = "2006-01-02T15:04:05"

const expectedLines = 3

// Meta is the parsed content of a meta file.
type Meta struct {
	Name         string
	Date         time.Time
	IntervalName string
}

// Status distinguishes why Read did not return a usable Meta, replacing
// exception-for-control-flow with an explicit result, per spec.md §9's
// redesign flag.
type Status int

const (
	// Ok means the file was present and well-formed.
	Ok Status = iota
	// Absent means the file does not exist at all.
	Absent
	// Malformed means the file exists but could not be read or parsed: a
	// read error, a missing trailing newline, the wrong line count, or an
	// unparseable date.
	Malformed
)

// ReadResult bundles the outcome of Read.
type ReadResult struct {
	Status Status
	Meta   Meta
	// Err carries the underlying parse error when Status is Malformed, for
	// logging; callers must not branch on it, only on Status.
	Err error
}

// Read parses the meta file at path. It never returns a Go error for a
// missing or malformed file; those are reported via ReadResult.Status so
// callers (the repository's open-time scan) can treat them uniformly as
// "skip with a warning" instead of catching exceptions.
func Read(path string) ReadResult {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ReadResult{Status: Absent}
		}
		return ReadResult{Status: Malformed, Err: fmt.Errorf("read meta file %s: %w", path, err)}
	}

	content := string(data)
	if !strings.HasSuffix(content, "\n") {
		return ReadResult{Status: Malformed, Err: fmt.Errorf("meta file %s: missing trailing newline", path)}
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	if len(lines) != expectedLines {
		return ReadResult{Status: Malformed, Err: fmt.Errorf("meta file %s: expected %d lines, got %d", path, expectedLines, len(lines))}
	}

	date, err := time.ParseInLocation(DateFormat, lines[1], time.Local)
	if err != nil {
		return ReadResult{Status: Malformed, Err: fmt.Errorf("meta file %s: invalid date %q: %w", path, lines[1], err)}
	}

	return ReadResult{
		Status: Ok,
		Meta: Meta{
			Name:         lines[0],
			Date:         date,
			IntervalName: lines[2],
		},
	}
}

// Write serializes m to path. It writes to a temp file in the same
// directory and renames into place, so a mid-write crash leaves the
// original path either absent or fully written, never truncated.
// Satisfies the "partially-written meta leaves is_finished() false"
// contract (a half-renamed file never exists under the final name at all).
func Write(path string, m Meta) error {
	content := m.Name + "\n" + m.Date.Format(DateFormat) + "\n" + m.IntervalName + "\n"

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write meta temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename meta temp file into place %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a meta file is present at path, without parsing it.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
