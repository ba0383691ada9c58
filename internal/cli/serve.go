// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/hkoerber/snapbackupd/internal/statusd"
)

func newServeCmd(ro *RootOpts) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with a live status feed over HTTP/WebSocket",
		Long: `Serve runs the same tick loop as "run", and additionally exposes
GET /status (last tick as JSON) and GET /ws (live tick feed over WebSocket)
for operator tooling. The status server only ever reads the immutable
summary each tick publishes; it never drives the repository engine.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cfg, err := ro.OpenManager()
			if err != nil {
				return err
			}

			bindAddr := addr
			if bindAddr == "" {
				bindAddr = cfg.StatusAddr
			}
			if bindAddr == "" {
				return fmt.Errorf("serve: no --addr given and status_addr is empty in config")
			}

			logger := ro.Logger()
			status := statusd.New(logger)
			m.Publish = status.Publish

			httpServer := &http.Server{Addr: bindAddr, Handler: status.Handler()}

			fmt.Fprintf(cmd.OutOrStdout(), "snapbackupd: serving %d repositories, status on %s\n", len(cfg.Repositories), bindAddr)

			return runUntilSignal(cmd.Context(), func(ctx context.Context) error {
				errCh := make(chan error, 1)
				go func() { errCh <- httpServer.ListenAndServe() }()

				go func() {
					<-ctx.Done()
					_ = httpServer.Close()
				}()

				runErr := m.Run(ctx, cfg.TickInterval)
				if runErr != nil && ctx.Err() == nil {
					_ = httpServer.Close()
					return runErr
				}

				if err := <-errCh; err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to bind the status server to (overrides status_addr from config)")
	return cmd
}
