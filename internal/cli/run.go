// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd(ro *RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the backup daemon in the foreground",
		Long: `Run loads the config, opens every configured repository, and ticks them
forever on tick_interval until interrupted. The first tick fires immediately,
so anything already due at startup runs right away.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cfg, err := ro.OpenManager()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "snapbackupd: running %d repositories, tick_interval=%s\n",
				len(cfg.Repositories), cfg.TickInterval)

			return runUntilSignal(cmd.Context(), func(ctx context.Context) error {
				return m.Run(ctx, cfg.TickInterval)
			})
		},
	}
	return cmd
}

func newTickCmd(ro *RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run exactly one create+expire pass and exit",
		Long: `Tick performs one CreateIfNecessary+HandleExpired pass per configured
repository and exits, for invocation from an external scheduler (cron,
systemd timer) instead of using the daemon's own ticker.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := ro.OpenManager()
			if err != nil {
				return err
			}
			return m.Tick(cmd.Context(), time.Now())
		},
	}
	return cmd
}
