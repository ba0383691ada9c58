// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hkoerber/snapbackupd/internal/exitcode"
)

// keyboardInterruptError is returned by runUntilSignal when the process was
// stopped by SIGINT, mirroring the original daemon's distinct
// EXIT_KEYBOARD_INTERRUPT exit code for Ctrl-C versus a plain SIGTERM
// shutdown (which exits 0).
type keyboardInterruptError struct{}

func (keyboardInterruptError) Error() string { return "interrupted" }
func (keyboardInterruptError) ExitCode() int { return exitcode.KeyboardInterrupt }

// runUntilSignal runs fn with a context that is canceled on SIGINT or
// SIGTERM, and waits for fn to return before reporting a result. SIGTERM is
// treated as a normal, requested shutdown (fn's own ctx.Err() is
// discarded); SIGINT is reported as keyboardInterruptError so the caller's
// exit code distinguishes the two, per SPEC_FULL.md §9.
func runUntilSignal(parent context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case sig := <-sigCh:
		cancel()
		<-done
		if sig == syscall.SIGINT {
			return keyboardInterruptError{}
		}
		return nil
	case err := <-done:
		return err
	}
}
