// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hkoerber/snapbackupd/internal/cronsched"
	"github.com/hkoerber/snapbackupd/internal/manager"
	"github.com/hkoerber/snapbackupd/internal/replicator"
	"github.com/hkoerber/snapbackupd/internal/repository"
)

func mustCron(t *testing.T, expr string) *cronsched.Expression {
	t.Helper()
	e, err := cronsched.Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	return e
}

func fakeReplicate(t *testing.T) repository.ReplicateFunc {
	return func(ctx context.Context, req replicator.Request) (replicator.Result, error) {
		if err := os.MkdirAll(req.Destination, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		return replicator.Result{ExitCode: 0}, nil
	}
}

func testManager(t *testing.T) *manager.Manager {
	t.Helper()
	cfg := repository.Config{
		Name:        "home",
		Sources:     []string{filepath.Join(t.TempDir(), "src")},
		Destination: t.TempDir(),
		Intervals:   []repository.Interval{{Name: "hourly", Cron: mustCron(t, "0 * * * *")}},
		Keep:        map[string]int{"hourly": 3},
		KeepAge:     map[string]time.Duration{"hourly": time.Hour},
		Replicate:   fakeReplicate(t),
	}
	m, err := manager.New([]repository.Config{cfg}, nil)
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	now := time.Date(2024, 1, 2, 3, 0, 0, 0, time.Local)
	if err := m.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return m
}

func TestFindSnapshotFound(t *testing.T) {
	m := testManager(t)
	snaps := m.Repositories()[0].Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	want := snaps[0].FolderName()

	info, err := findSnapshot(m, "home", want)
	if err != nil {
		t.Fatalf("findSnapshot: %v", err)
	}
	if info.Repository != "home" || info.Name != want || info.Interval != "hourly" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestFindSnapshotUnknownRepository(t *testing.T) {
	m := testManager(t)
	if _, err := findSnapshot(m, "nope", "anything"); err == nil {
		t.Fatal("expected error for unknown repository")
	}
}

func TestFindSnapshotUnknownSnapshot(t *testing.T) {
	m := testManager(t)
	if _, err := findSnapshot(m, "home", "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown snapshot")
	}
}
