// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package snapshot implements BackupFolder: a single on-disk snapshot
// directory containing a data/ subdirectory (real or symlinked) and a meta
// file. A BackupFolder knows nothing about its siblings or the repository
// it belongs to; all cross-snapshot policy lives in package repository.
package snapshot

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hkoerber/snapbackupd/internal/fsutil"
	"github.com/hkoerber/snapbackupd/internal/metafile"
)

// DataSubdir is the fixed name of the subdirectory holding replicated data
// (or a symlink to a peer's replicated data).
const DataSubdir = "data"

// MetaFilename is the fixed name of the per-snapshot meta file.
const MetaFilename = "meta"

// Folder is one snapshot directory on disk.
type Folder struct {
	path string
	meta metafile.Meta
}

// New returns a Folder rooted at path. It does not touch the filesystem.
func New(path string) *Folder {
	return &Folder{path: path}
}

// Path is the snapshot's root directory.
func (f *Folder) Path() string { return f.path }

// FolderName is the basename of Path, i.e. the on-disk directory name.
func (f *Folder) FolderName() string { return filepath.Base(f.path) }

// DataPath is path/data, which may be a real directory or a symlink to a
// peer's data/.
func (f *Folder) DataPath() string { return filepath.Join(f.path, DataSubdir) }

// MetaPath is path/meta.
func (f *Folder) MetaPath() string { return filepath.Join(f.path, MetaFilename) }

// Name returns the meta record's folder name field (set via SetMeta or
// ReadMeta).
func (f *Folder) Name() string { return f.meta.Name }

// Date returns the meta record's creation timestamp.
func (f *Folder) Date() time.Time { return f.meta.Date }

// IntervalName returns the meta record's interval name.
func (f *Folder) IntervalName() string { return f.meta.IntervalName }

// SetMeta populates the in-memory meta record without touching disk; call
// WriteMeta to persist it.
func (f *Folder) SetMeta(name string, date time.Time, interval string) {
	f.meta = metafile.Meta{Name: name, Date: date, IntervalName: interval}
}

// Prepare creates the snapshot's root directory. It fails if the directory
// already exists.
func (f *Folder) Prepare() error {
	if err := fsutil.Mkdir(f.path); err != nil {
		return fmt.Errorf("prepare backup folder %s: %w", f.path, err)
	}
	return nil
}

// WriteMeta persists the in-memory meta record to disk. Writing the meta
// file is always the last step of creating a snapshot, so that a crash
// before this point leaves the folder invisible to the index (IsFinished
// is false) rather than half-registered.
func (f *Folder) WriteMeta() error {
	return metafile.Write(f.MetaPath(), f.meta)
}

// ReadMeta parses the on-disk meta file into the in-memory record. Callers
// should check IsFinished before calling ReadMeta, since an absent or
// malformed meta file makes this snapshot invisible to the engine rather
// than an error to propagate.
func (f *Folder) ReadMeta() metafile.ReadResult {
	res := metafile.Read(f.MetaPath())
	if res.Status == metafile.Ok {
		f.meta = res.Meta
	}
	return res
}

// IsFinished reports whether both the meta file and the data subdirectory
// are present. A directory missing either is in-progress or aborted and is
// invisible to the engine; it is never deleted automatically.
func (f *Folder) IsFinished() bool {
	return metafile.Exists(f.MetaPath()) && fsutil.Exists(f.DataPath())
}

// DataIsSymlink reports whether this snapshot's data/ is a symlink rather
// than a real directory.
func (f *Folder) DataIsSymlink() bool {
	return fsutil.IsSymlink(f.DataPath())
}
