package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health and session state",
		Long:  `Check the chat backend's health endpoint and summarize the current session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "Backend: %s\n", a.client.BaseURL())
				health, err := a.client.Health(ctx)
				if err != nil {
					fmt.Fprintf(out, "Health: unreachable (%v)\n", err)
				} else {
					fmt.Fprintf(out, "Health: %v\n", health["status"])
				}

				fmt.Fprintf(out, "Store: %s\n", a.cfg.Session.Backend)
				sess, ok := a.manager.GetSession(ctx, opts.sessionKey)
				if !ok {
					fmt.Fprintf(out, "Session: not initialized\n")
					return nil
				}
				fmt.Fprintf(out, "Session: %s\n", sess.SessionID)
				fmt.Fprintf(out, "Age: %s\n", formatDuration(time.Since(sess.CreatedAt)))
				fmt.Fprintf(out, "Idle: %s (limit %s)\n",
					formatDuration(time.Since(sess.LastActivity)), formatDuration(a.manager.MaxAge()))
				return nil
			})
		},
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
