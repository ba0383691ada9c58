// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package repository implements the repository engine: schedule
// evaluation, snapshot creation with symlink fan-out, and the
// symlink-collapsing expiry algorithm. It is the core of snapbackupd.
package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hkoerber/snapbackupd/internal/cronsched"
	"github.com/hkoerber/snapbackupd/internal/fsutil"
	"github.com/hkoerber/snapbackupd/internal/logging"
	"github.com/hkoerber/snapbackupd/internal/metafile"
	"github.com/hkoerber/snapbackupd/internal/replicator"
	"github.com/hkoerber/snapbackupd/internal/snapshot"
)

// LatestSymlinkName is the fixed name of the "most recent snapshot" symlink
// kept directly inside a repository's destination directory.
const LatestSymlinkName = "latest"

// Interval is one named, scheduled backup interval.
type Interval struct {
	Name string
	Cron *cronsched.Expression
}

// ReplicateFunc invokes the external replicator. Tests inject a fake
// implementation; production code uses replicator.Replicate.
type ReplicateFunc func(ctx context.Context, req replicator.Request) (replicator.Result, error)

// Config describes one repository: its sources, destination, schedules and
// retention policy, and how to invoke the replicator.
type Config struct {
	Name        string
	Sources     []string
	Destination string

	// Intervals is kept as an ordered slice (not a map) because
	// necessary-interval evaluation order determines which interval
	// becomes "primary" (gets the real replication) on a tick where
	// several intervals fire simultaneously; map iteration order would
	// make that choice nondeterministic.
	Intervals []Interval
	Keep      map[string]int
	KeepAge   map[string]time.Duration

	ReplicatorCmd     string
	ReplicatorArgs    []string
	ReplicatorFilter  string
	ReplicatorLogOpts []string

	// Replicate overrides how the replicator is invoked; nil selects
	// replicator.Replicate.
	Replicate ReplicateFunc
}

// Validate checks REPO-INV(3): keep and keep_age must be defined for every
// configured interval. It does not require the reverse (extra keep/keep_age
// entries for intervals that no longer exist are ignored here; internal/config
// rejects them when loading the config file).
func (c Config) Validate() error {
	for _, iv := range c.Intervals {
		if _, ok := c.Keep[iv.Name]; !ok {
			return errMissingKeep(iv.Name)
		}
		if _, ok := c.KeepAge[iv.Name]; !ok {
			return errMissingKeepAge(iv.Name)
		}
	}
	return nil
}

// Repository is one opened, in-memory view of a destination directory. The
// index is an arena keyed by folder name; every other reference to a
// snapshot is resolved through it rather than held as a direct pointer
// passed across calls, so that unregistering a snapshot invalidates
// exactly one place.
type Repository struct {
	cfg    Config
	logger logging.Logger
	index  map[string]*snapshot.Folder
}

// Open scans cfg.Destination and builds the in-memory index from whatever
// finalized snapshots are found there. Unfinalized or malformed snapshot
// directories are logged and left untouched. The index is always re-derived
// from disk, so there is no persistent state beyond the filesystem itself.
func Open(cfg Config, logger logging.Logger) (*Repository, error) {
	if logger == nil {
		logger = logging.Discard
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Replicate == nil {
		cfg.Replicate = replicator.Replicate
	}

	r := &Repository{cfg: cfg, logger: logger, index: make(map[string]*snapshot.Folder)}

	entries, err := os.ReadDir(cfg.Destination)
	if err != nil {
		return nil, fmt.Errorf("repository %q: read destination %s: %w", cfg.Name, cfg.Destination, err)
	}

	for _, entry := range entries {
		if entry.Name() == LatestSymlinkName {
			continue
		}
		if !entry.IsDir() {
			continue
		}
		f := snapshot.New(filepath.Join(cfg.Destination, entry.Name()))
		if !f.IsFinished() {
			logger.Warnf("repository %q: %s is not a finished backup, skipping", cfg.Name, entry.Name())
			continue
		}
		res := f.ReadMeta()
		if res.Status != metafile.Ok {
			logger.Warnf("repository %q: %s has a malformed meta file, skipping: %v", cfg.Name, entry.Name(), res.Err)
			continue
		}
		r.register(f)
	}

	return r, nil
}

// Snapshots returns every snapshot currently in the index, sorted by date
// ascending, oldest first.
func (r *Repository) Snapshots() []*snapshot.Folder {
	out := make([]*snapshot.Folder, 0, len(r.index))
	for _, f := range r.index {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date().Equal(out[j].Date()) {
			return out[i].FolderName() < out[j].FolderName()
		}
		return out[i].Date().Before(out[j].Date())
	})
	return out
}

func (r *Repository) register(f *snapshot.Folder) {
	r.logger.Debugf("repository %q: registering %s", r.cfg.Name, f.FolderName())
	r.index[f.FolderName()] = f
}

func (r *Repository) unregister(name string) error {
	if _, ok := r.index[name]; !ok {
		return &AssertionError{Msg: fmt.Sprintf("unregister unknown snapshot %q", name)}
	}
	r.logger.Debugf("repository %q: unregistering %s", r.cfg.Name, name)
	delete(r.index, name)
	return nil
}

func (r *Repository) latestSnapshotOfInterval(interval string) *snapshot.Folder {
	var latest *snapshot.Folder
	for _, f := range r.index {
		if f.IntervalName() != interval {
			continue
		}
		if latest == nil || f.Date().After(latest.Date()) {
			latest = f
		}
	}
	return latest
}

// LatestSnapshot returns the most recently created snapshot across all
// intervals, or nil if the index is empty.
func (r *Repository) LatestSnapshot() *snapshot.Folder {
	var latest *snapshot.Folder
	for _, f := range r.index {
		if latest == nil || f.Date().After(latest.Date()) {
			latest = f
		}
	}
	return latest
}

// NecessaryIntervals returns the configured intervals that are due at now,
// in configured order. An interval is due if no snapshot of that interval
// exists yet, or if its cron expression has fired since the latest
// snapshot of that interval was created.
func (r *Repository) NecessaryIntervals(now time.Time) []Interval {
	var due []Interval
	for _, iv := range r.cfg.Intervals {
		latest := r.latestSnapshotOfInterval(iv.Name)
		if latest == nil {
			due = append(due, iv)
			continue
		}
		if iv.Cron.HasOccurredSince(latest.Date(), now, false) {
			due = append(due, iv)
		}
	}
	return due
}

func (r *Repository) folderName(now time.Time, interval string) string {
	return fmt.Sprintf("%s-%s-%s", r.cfg.Name, now.Format(metafile.DateFormat), interval)
}

// CreateIfNecessary creates at most one physical snapshot for this tick: the
// first due interval is replicated for real, and every other due interval
// on the same tick becomes a symlink peer pointing at it. If nothing is
// due, it returns nil without touching the filesystem (idempotent per P7).
func (r *Repository) CreateIfNecessary(ctx context.Context, now time.Time) error {
	due := r.NecessaryIntervals(now)
	if len(due) == 0 {
		r.logger.Debugf("repository %q: no backup necessary", r.cfg.Name)
		return nil
	}

	primary := due[0]
	linkRef := r.LatestSnapshot()

	name := r.folderName(now, primary.Name)
	folder := snapshot.New(filepath.Join(r.cfg.Destination, name))
	folder.SetMeta(name, now, primary.Name)

	if err := folder.Prepare(); err != nil {
		return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
	}

	if err := r.replicate(ctx, folder, primary.Name, linkRef); err != nil {
		return err
	}

	if err := folder.WriteMeta(); err != nil {
		return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
	}
	r.register(folder)
	r.logger.Infof("repository %q: created backup %q for interval %q", r.cfg.Name, name, primary.Name)

	if err := r.relinkLatest(folder); err != nil {
		return err
	}

	for _, iv := range due[1:] {
		peerName := r.folderName(now, iv.Name)
		peer := snapshot.New(filepath.Join(r.cfg.Destination, peerName))
		peer.SetMeta(peerName, now, iv.Name)

		if err := peer.Prepare(); err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
		if err := fsutil.CreateSymlink(folder.DataPath(), peer.DataPath()); err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
		if err := peer.WriteMeta(); err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
		r.register(peer)
		r.logger.Infof("repository %q: linked backup %q to %q for interval %q", r.cfg.Name, peerName, name, iv.Name)
	}

	return nil
}

func (r *Repository) replicate(ctx context.Context, folder *snapshot.Folder, interval string, linkRef *snapshot.Folder) error {
	linkDest := ""
	if linkRef != nil {
		linkDest = linkRef.DataPath()
	}
	for _, source := range r.cfg.Sources {
		req := replicator.Request{
			Cmd:         r.cfg.ReplicatorCmd,
			Args:        r.cfg.ReplicatorArgs,
			Filter:      r.cfg.ReplicatorFilter,
			LogOpts:     r.cfg.ReplicatorLogOpts,
			LinkRef:     linkDest,
			Source:      source,
			Destination: folder.DataPath(),
		}
		res, err := r.cfg.Replicate(ctx, req)
		if err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
		if !res.Success() {
			return &ReplicatorError{Interval: interval, Source: source, Result: res}
		}
	}
	return nil
}

func (r *Repository) relinkLatest(folder *snapshot.Folder) error {
	latestPath := filepath.Join(r.cfg.Destination, LatestSymlinkName)
	if fsutil.IsSymlink(latestPath) {
		if err := fsutil.RemoveSymlink(latestPath); err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
	}
	if err := fsutil.CreateSymlink(folder.Path(), latestPath); err != nil {
		return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
	}
	return nil
}

// expiredSnapshots returns, for each configured interval, the union of
// snapshots expired by count (more than keep[iv] present) and by age
// (older than the now-relative keep_age[iv] cutoff).
func (r *Repository) expiredSnapshots(now time.Time) ([]*snapshot.Folder, error) {
	expiredSet := make(map[string]*snapshot.Folder)

	for _, iv := range r.cfg.Intervals {
		keep, ok := r.cfg.Keep[iv.Name]
		if !ok {
			return nil, errMissingKeep(iv.Name)
		}
		maxAge, ok := r.cfg.KeepAge[iv.Name]
		if !ok {
			return nil, errMissingKeepAge(iv.Name)
		}

		var of []*snapshot.Folder
		for _, f := range r.index {
			if f.IntervalName() == iv.Name {
				of = append(of, f)
			}
		}
		sort.Slice(of, func(i, j int) bool { return of[i].Date().Before(of[j].Date()) })

		if excess := len(of) - keep; excess > 0 {
			for _, f := range of[:excess] {
				expiredSet[f.FolderName()] = f
			}
		}

		cutoff := now.Add(-maxAge)
		for _, f := range of {
			if f.Date().Before(cutoff) {
				expiredSet[f.FolderName()] = f
			}
		}
	}

	out := make([]*snapshot.Folder, 0, len(expiredSet))
	for _, f := range expiredSet {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FolderName() < out[j].FolderName() })
	return out, nil
}

// HandleExpired applies the retention policy and runs the symlink-collapsing
// algorithm for every expired snapshot. Each expired snapshot is re-checked
// against the live index immediately before it is processed, because an
// earlier step in this same call may have already promoted or removed it
// (see expireOne).
func (r *Repository) HandleExpired(now time.Time) error {
	expired, err := r.expiredSnapshots(now)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		r.logger.Debugf("repository %q: no expired backups", r.cfg.Name)
		return nil
	}

	for _, f := range expired {
		current, ok := r.index[f.FolderName()]
		if !ok {
			// Already removed as a side effect of an earlier iteration
			// (e.g. it was the origin of a promotion chain).
			continue
		}
		if err := r.expireOne(current); err != nil {
			return err
		}
	}
	return nil
}

// expireOne retires a single expired snapshot e, per spec.md §4.4.5:
//
//  1. If e's data/ is itself a symlink, the whole directory is just a
//     reference; delete it outright.
//  2. Otherwise e holds the real data. Find every other registered
//     snapshot whose data/ is a symlink resolving to the same underlying
//     directory as e's data/ ("peers"). If there are none, delete e
//     outright. Otherwise promote the first peer: remove its symlink,
//     move e's real data/ into the peer's place, delete what remains of
//     e, then repoint every other peer's symlink at the promoted
//     directory.
func (r *Repository) expireOne(e *snapshot.Folder) error {
	r.logger.Infof("repository %q: expiring backup %q", r.cfg.Name, e.FolderName())

	if e.DataIsSymlink() {
		r.logger.Infof("repository %q: removing symlinked backup %q", r.cfg.Name, e.FolderName())
		if err := fsutil.RemoveRecursive(e.Path()); err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
		return r.unregister(e.FolderName())
	}

	peers, err := r.peersOf(e)
	if err != nil {
		return err
	}

	if len(peers) == 0 {
		r.logger.Infof("repository %q: removing unreferenced backup %q", r.cfg.Name, e.FolderName())
		if err := fsutil.RemoveRecursive(e.Path()); err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
		return r.unregister(e.FolderName())
	}

	promoted := peers[0]
	r.logger.Infof("repository %q: promoting %q to physical holder in place of %q", r.cfg.Name, promoted.FolderName(), e.FolderName())

	if err := fsutil.RemoveSymlink(promoted.DataPath()); err != nil {
		return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
	}
	if err := fsutil.Move(e.DataPath(), promoted.DataPath()); err != nil {
		return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
	}
	if err := fsutil.RemoveRecursive(e.Path()); err != nil {
		return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
	}
	if err := r.unregister(e.FolderName()); err != nil {
		return err
	}

	for _, q := range peers[1:] {
		r.logger.Infof("repository %q: repointing %q to promoted backup %q", r.cfg.Name, q.FolderName(), promoted.FolderName())
		if err := fsutil.RemoveSymlink(q.DataPath()); err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
		if err := fsutil.CreateSymlink(promoted.DataPath(), q.DataPath()); err != nil {
			return fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
	}

	return nil
}

// peersOf returns every other registered snapshot whose data/ is a symlink
// resolving to the same directory as e's data/, sorted by folder name for
// deterministic promotion-target selection.
func (r *Repository) peersOf(e *snapshot.Folder) ([]*snapshot.Folder, error) {
	var peers []*snapshot.Folder
	for _, b := range r.index {
		if b.FolderName() == e.FolderName() {
			continue
		}
		if !b.DataIsSymlink() {
			continue
		}
		same, err := fsutil.SameFile(b.DataPath(), e.DataPath())
		if err != nil {
			return nil, fmt.Errorf("repository %q: %w", r.cfg.Name, err)
		}
		if same {
			peers = append(peers, b)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].FolderName() < peers[j].FolderName() })
	return peers, nil
}
