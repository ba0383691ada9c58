// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hkoerber/snapbackupd/internal/manager"
)

type snapshotInfo struct {
	Repository string `json:"repository"`
	Name       string `json:"name"`
	Interval   string `json:"interval"`
	Date       string `json:"date"`
	Symlink    bool   `json:"symlink"`
	Path       string `json:"path"`
	DataPath   string `json:"data_path"`
}

func newInfoCmd(ro *RootOpts) *cobra.Command {
	var formatOut string

	cmd := &cobra.Command{
		Use:   "info <repository> <snapshot>",
		Short: "Show detail for a single snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := ro.OpenManager()
			if err != nil {
				return err
			}
			info, err := findSnapshot(m, args[0], args[1])
			if err != nil {
				return err
			}

			if formatOut == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "repository: %s\n", info.Repository)
			fmt.Fprintf(out, "name:       %s\n", info.Name)
			fmt.Fprintf(out, "interval:   %s\n", info.Interval)
			fmt.Fprintf(out, "date:       %s\n", info.Date)
			fmt.Fprintf(out, "symlink:    %v\n", info.Symlink)
			fmt.Fprintf(out, "path:       %s\n", info.Path)
			fmt.Fprintf(out, "data path:  %s\n", info.DataPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&formatOut, "format", "text", "output format: text, json")
	return cmd
}

func findSnapshot(m *manager.Manager, repoName, snapName string) (snapshotInfo, error) {
	names := m.Names()
	for i, repo := range m.Repositories() {
		if names[i] != repoName {
			continue
		}
		for _, s := range repo.Snapshots() {
			if s.FolderName() != snapName {
				continue
			}
			return snapshotInfo{
				Repository: repoName,
				Name:       s.FolderName(),
				Interval:   s.IntervalName(),
				Date:       s.Date().Format("2006-01-02T15:04:05"),
				Symlink:    s.DataIsSymlink(),
				Path:       s.Path(),
				DataPath:   s.DataPath(),
			}, nil
		}
		return snapshotInfo{}, fmt.Errorf("repository %q has no snapshot %q", repoName, snapName)
	}
	return snapshotInfo{}, fmt.Errorf("no configured repository named %q", repoName)
}
