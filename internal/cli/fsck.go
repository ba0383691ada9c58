// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hkoerber/snapbackupd/internal/fsutil"
	"github.com/hkoerber/snapbackupd/internal/metafile"
	"github.com/hkoerber/snapbackupd/internal/repository"
	"github.com/hkoerber/snapbackupd/internal/snapshot"
)

// fsckFinding describes one thing worth an operator's attention. fsck never
// modifies the filesystem: unlike a symlink cache that can be rebuilt from
// manifests, a snapbackupd destination's symlinks encode real retention
// history and are never safe to regenerate blindly.
type fsckFinding struct {
	Path   string
	Reason string
}

func newFsckCmd(ro *RootOpts) *cobra.Command {
	var repoFilter string

	cmd := &cobra.Command{
		Use:   "fsck",
		Short: "Report unfinalized or broken snapshot directories without modifying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.LoadConfig()
			if err != nil {
				return err
			}

			var findings []fsckFinding
			for _, rc := range cfg.Repositories {
				if repoFilter != "" && rc.Name != repoFilter {
					continue
				}
				f, err := fsckRepository(rc)
				if err != nil {
					return fmt.Errorf("fsck %q: %w", rc.Name, err)
				}
				findings = append(findings, f...)
			}

			out := cmd.OutOrStdout()
			if len(findings) == 0 {
				fmt.Fprintln(out, "no issues found")
				return nil
			}
			for _, f := range findings {
				fmt.Fprintf(out, "%s: %s\n", f.Path, f.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoFilter, "repo", "", "only check this repository")
	return cmd
}

func fsckRepository(rc repository.Config) ([]fsckFinding, error) {
	entries, err := os.ReadDir(rc.Destination)
	if err != nil {
		return nil, fmt.Errorf("read destination %s: %w", rc.Destination, err)
	}

	var findings []fsckFinding
	for _, entry := range entries {
		if entry.Name() == repository.LatestSymlinkName || !entry.IsDir() {
			continue
		}
		path := filepath.Join(rc.Destination, entry.Name())
		f := snapshot.New(path)

		// Checked before IsFinished, which follows the symlink and would
		// otherwise report a broken link as an unfinalized directory.
		if f.DataIsSymlink() && !fsutil.Exists(f.DataPath()) {
			findings = append(findings, fsckFinding{Path: path, Reason: "data symlink does not resolve to an existing directory"})
			continue
		}
		if !f.IsFinished() {
			findings = append(findings, fsckFinding{Path: path, Reason: "missing meta file or data directory (unfinalized)"})
			continue
		}
		if res := f.ReadMeta(); res.Status != metafile.Ok {
			findings = append(findings, fsckFinding{Path: path, Reason: fmt.Sprintf("malformed meta file: %v", res.Err)})
			continue
		}
	}
	return findings, nil
}
