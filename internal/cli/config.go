// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(ro *RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the repositories config file",
	}
	cmd.AddCommand(newConfigValidateCmd(ro))
	return cmd
}

func newConfigValidateCmd(ro *RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file without opening any repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.LoadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config %s is valid: %d repositories, tick_interval=%s\n",
				ro.ConfigPath, len(cfg.Repositories), cfg.TickInterval)
			return nil
		},
	}
}
