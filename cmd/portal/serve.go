package main

import (
	"context"
	"time"

	"member-portal/internal/callback"
	"member-portal/internal/membership"

	"github.com/spf13/cobra"
)

func newServeCmd(getApp func() *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the payment callback server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			if addr == "" {
				addr = a.cfg.Server.Address
			}
			flow, err := a.newFlow()
			if err != nil {
				return err
			}
			srv := callback.NewServer(addr, flow, a.log, callback.WithResolveHook(
				func(ctx context.Context, out *membership.Outcome) error {
					a.log.Info("Enrollment resolved", map[string]interface{}{
						"state":  string(out.State),
						"tier":   string(out.Tier),
						"userId": out.UserID,
					})
					// ready for the next member
					return flow.Reset()
				}))

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				a.log.Info("Shutting down callback server", nil)
				return shutdown(srv)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return cmd
}

func shutdown(srv *callback.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
