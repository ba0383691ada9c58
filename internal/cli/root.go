// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the cobra command tree exposed by cmd/snapbackupd:
// run, tick, list, info, fsck, config validate, and serve.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hkoerber/snapbackupd/internal/config"
	"github.com/hkoerber/snapbackupd/internal/logging"
	"github.com/hkoerber/snapbackupd/internal/manager"
)

// RootOpts holds the persistent flags shared by every subcommand, built
// once by Execute and threaded through each newXxxCmd constructor. An
// explicit options struct, no package globals.
type RootOpts struct {
	ConfigPath string
	Debug      bool
	Verbose    bool
	Quiet      bool
	JSONLog    bool
	Out        io.Writer
}

// Logger builds the Logger implied by the verbosity flags and --json-log.
func (ro *RootOpts) Logger() logging.Logger {
	level := logging.ParseLevel(ro.Debug, ro.Verbose, ro.Quiet)
	out := ro.Out
	if out == nil {
		out = os.Stderr
	}
	if ro.JSONLog {
		return logging.NewJSON(out, level)
	}
	return logging.NewText(out, level)
}

// LoadConfig loads and validates the config file at ro.ConfigPath.
func (ro *RootOpts) LoadConfig() (*config.Config, error) {
	return config.Load(ro.ConfigPath)
}

// OpenManager loads the config and opens every configured repository.
func (ro *RootOpts) OpenManager() (*manager.Manager, *config.Config, error) {
	cfg, err := ro.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	m, err := manager.New(cfg.Repositories, ro.Logger())
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// NewRootCmd builds the "snapbackupd" command tree.
func NewRootCmd() *cobra.Command {
	ro := &RootOpts{}

	cmd := &cobra.Command{
		Use:           "snapbackupd",
		Short:         "Scheduled, hardlink-based snapshot backup daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&ro.ConfigPath, "config", config.DefaultPath, "path to the repositories config file")
	cmd.PersistentFlags().BoolVar(&ro.Debug, "debug", false, "debug-level logging")
	cmd.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "notice-level logging")
	cmd.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "warn-level logging only")
	cmd.PersistentFlags().BoolVar(&ro.JSONLog, "json-log", false, "emit logs as JSON lines instead of text")

	cmd.AddCommand(newRunCmd(ro))
	cmd.AddCommand(newTickCmd(ro))
	cmd.AddCommand(newListCmd(ro))
	cmd.AddCommand(newInfoCmd(ro))
	cmd.AddCommand(newFsckCmd(ro))
	cmd.AddCommand(newConfigCmd(ro))
	cmd.AddCommand(newServeCmd(ro))

	return cmd
}

// Execute runs the command tree against os.Args and returns the error from
// whichever command ran, for cmd/snapbackupd/main.go to map to an exit code.
func Execute() error {
	return NewRootCmd().Execute()
}
