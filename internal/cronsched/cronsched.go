// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package cronsched wraps github.com/robfig/cron/v3 to expose the single
// predicate the repository engine needs: whether a cron expression has
// fired at least once in a given window. Parsing and schedule arithmetic
// are entirely delegated to robfig/cron; this package only adds the
// has-occurred-since framing spec.md's cron component requires.
package cronsched

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Expression is a parsed, reusable cron schedule. Timezone is always local
// wall time, matching the core's treatment of cron as operating over local
// time rather than UTC.
type Expression struct {
	raw      string
	schedule cron.Schedule
}

// Parse parses a standard 5-field cron expression (minute hour dom month
// dow). Descriptors like "@hourly" are also accepted, as robfig/cron
// supports them natively.
func Parse(expr string) (*Expression, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return &Expression{raw: expr, schedule: schedule}, nil
}

// String returns the original cron expression text.
func (e *Expression) String() string {
	return e.raw
}

// HasOccurredSince reports whether this expression's next scheduled fire
// time strictly after anchor (or at-or-after anchor, when includeStart is
// true) has already passed by now.
//
// includeStart=true is used for "is this interval due right now, given
// that now itself might be an exact fire instant" checks; includeStart=false
// is used for "has this interval fired again since the last snapshot of
// this interval was taken" checks, where the snapshot's own creation time
// must not count as a second occurrence.
func (e *Expression) HasOccurredSince(anchor, now time.Time, includeStart bool) bool {
	from := anchor
	if includeStart {
		// schedule.Next is strictly-after; subtracting an instant lets the
		// anchor instant itself count as the "next" fire if it matches.
		from = anchor.Add(-time.Nanosecond)
	}
	next := e.schedule.Next(from)
	return !next.After(now)
}

// Next returns the next fire time strictly after t, for diagnostic/status
// reporting. No command of internal/cli currently prints it.
func (e *Expression) Next(t time.Time) time.Time {
	return e.schedule.Next(t)
}
