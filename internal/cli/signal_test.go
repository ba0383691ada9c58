// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestRunUntilSignalReturnsFnError(t *testing.T) {
	wantErr := errors.New("boom")
	err := runUntilSignal(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestRunUntilSignalSIGTERMIsGraceful(t *testing.T) {
	started := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- runUntilSignal(context.Background(), func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	<-started
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("SIGTERM should report nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runUntilSignal did not return after SIGTERM")
	}
}

func TestRunUntilSignalSIGINTReportsKeyboardInterrupt(t *testing.T) {
	started := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- runUntilSignal(context.Background(), func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	<-started
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess: %v", err)
	}
	if err := proc.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	select {
	case err := <-errCh:
		var kb keyboardInterruptError
		if !errors.As(err, &kb) {
			t.Fatalf("SIGINT should report keyboardInterruptError, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runUntilSignal did not return after SIGINT")
	}
}
