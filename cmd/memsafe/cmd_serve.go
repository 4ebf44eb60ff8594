package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wippyai/memsafe/server"
	"github.com/wippyai/memsafe/session"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr   string
		admins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the login demo with checked sessions",
		Long: `Serve the classic vulnerable login server, rebuilt so that oversized
passwords are rejected and sessions of released users fail as dangling.

Routes: /, /login, /logout, /check-user, /corrupt, /secret.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if len(admins) > 0 {
				a.cfg.Server.Admins = admins
			}

			store, err := session.NewStore(a.cfg.SessionOptions())
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Server running on %s\n", a.cfg.Server.Addr)
			return server.New(store, server.Config{Addr: a.cfg.Server.Addr}).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringSliceVar(&admins, "admin", nil, "Usernames that log in as admin")
	return cmd
}
