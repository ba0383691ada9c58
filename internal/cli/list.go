// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hkoerber/snapbackupd/internal/repository"
	"github.com/hkoerber/snapbackupd/internal/tui"
)

// listEntry is the --format json shape for one snapshot, mirroring the
// teacher's ListEntry in internal/cli/list.go.
type listEntry struct {
	Repository string `json:"repository"`
	Name       string `json:"name"`
	Interval   string `json:"interval"`
	Date       string `json:"date"`
	Symlink    bool   `json:"symlink"`
}

func newListCmd(ro *RootOpts) *cobra.Command {
	var repoFilter string
	var formatOut string
	var interactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots across configured repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := ro.OpenManager()
			if err != nil {
				return err
			}

			names := m.Names()
			repos := m.Repositories()

			if interactive {
				return runInteractive(names, repos, repoFilter)
			}

			var entries []listEntry
			for i, repo := range repos {
				if repoFilter != "" && names[i] != repoFilter {
					continue
				}
				for _, s := range repo.Snapshots() {
					entries = append(entries, listEntry{
						Repository: names[i],
						Name:       s.FolderName(),
						Interval:   s.IntervalName(),
						Date:       s.Date().Format(time.RFC3339),
						Symlink:    s.DataIsSymlink(),
					})
				}
			}

			if formatOut == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			printTable(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoFilter, "repo", "", "only list this repository")
	cmd.Flags().StringVar(&formatOut, "format", "table", "output format: table, json")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "launch the interactive snapshot browser")

	return cmd
}

func runInteractive(names []string, repos []*repository.Repository, repoFilter string) error {
	var rows []tui.Row
	title := "snapbackupd"
	for i, repo := range repos {
		if repoFilter != "" && names[i] != repoFilter {
			continue
		}
		if repoFilter != "" {
			title = names[i]
		}
		for _, s := range repo.Snapshots() {
			row := tui.Row{
				FolderName:   s.FolderName(),
				IntervalName: s.IntervalName(),
				Date:         s.Date(),
				IsSymlink:    s.DataIsSymlink(),
			}
			if row.IsSymlink {
				if target, err := os.Readlink(s.DataPath()); err == nil {
					row.LinkTarget = filepath.Base(filepath.Dir(target))
				}
			}
			rows = append(rows, row)
		}
	}
	_, err := tui.RunBrowser(title, rows)
	return err
}

// printTable writes a fixed-width table. When the terminal is at least 40
// columns wider than the repository and name columns, the full RFC3339 date
// is shown; otherwise the date column is dropped to keep the repository/name
// columns readable. A non-TTY run (e.g. under cron) counts as 80 columns.
func printTable(out io.Writer, entries []listEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No snapshots found.")
		return
	}

	maxRepo, maxName := 4, 4 // "REPO", "NAME"
	for _, e := range entries {
		if len(e.Repository) > maxRepo {
			maxRepo = len(e.Repository)
		}
		if len(e.Name) > maxName {
			maxName = len(e.Name)
		}
	}

	wide := tableWidth() >= maxRepo+maxName+40

	header := fmt.Sprintf("%-*s  %-*s  %-8s  %s", maxRepo, "REPO", maxName, "NAME", "INTERVAL", "KIND")
	if wide {
		header = fmt.Sprintf("%-*s  %-*s  %-8s  %-20s  %s", maxRepo, "REPO", maxName, "NAME", "INTERVAL", "DATE", "KIND")
	}
	fmt.Fprintln(out, header)

	for _, e := range entries {
		kind := "real"
		if e.Symlink {
			kind = "symlink"
		}
		if wide {
			fmt.Fprintf(out, "%-*s  %-*s  %-8s  %-20s  %s\n", maxRepo, e.Repository, maxName, e.Name, e.Interval, e.Date, kind)
		} else {
			fmt.Fprintf(out, "%-*s  %-*s  %-8s  %s\n", maxRepo, e.Repository, maxName, e.Name, e.Interval, kind)
		}
	}
}

func tableWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
