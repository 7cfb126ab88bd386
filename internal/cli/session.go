package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/harun/ezoverthinking/pkg/session"
	"github.com/spf13/cobra"
)

func newSessionCmd(opts *rootOptions) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored session",
	}

	sessionCmd.AddCommand(
		newSessionInitCmd(opts),
		newSessionShowCmd(opts),
		newSessionResetCmd(opts),
		newSessionExportCmd(opts),
		newSessionImportCmd(opts),
		newSessionListCmd(opts),
	)
	return sessionCmd
}

func newSessionInitCmd(opts *rootOptions) *cobra.Command {
	var displayName, email string

	cmd := &cobra.Command{
		Use:   "init [user-id]",
		Short: "Initialize the session, replacing any existing one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := ""
			if len(args) == 1 {
				userID = args[0]
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res := a.manager.Initialize(ctx, opts.sessionKey, userID)
				if !res.OK() {
					return fmt.Errorf("failed to initialize session: %s", res.Reason())
				}

				update := session.UserDataUpdate{}
				if cmd.Flags().Changed("name") {
					update.DisplayName = &displayName
				}
				if cmd.Flags().Changed("email") {
					e := &email
					update.Email = &e
				}
				if update.DisplayName != nil || update.Email != nil {
					if err := a.manager.UpdateUserData(ctx, opts.sessionKey, update); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Session %s initialized for %s\n", res.Value.SessionID, res.Value.UserID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "e-mail address")
	return cmd
}

func newSessionShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show session identity, conversation and escalation state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				s := a.manager.Session(opts.sessionKey)

				sess, ok := a.manager.GetSession(ctx, opts.sessionKey)
				if !ok {
					fmt.Fprintf(out, "Session %q: not initialized\n", opts.sessionKey)
					return nil
				}
				user := s.UserData(ctx)
				conv := s.Conversation(ctx)
				summary := a.manager.Escalation().Summary(ctx, opts.sessionKey)

				fmt.Fprintf(out, "Session:      %s\n", sess.SessionID)
				fmt.Fprintf(out, "User:         %s (%s)\n", sess.UserID, user.DisplayName)
				fmt.Fprintf(out, "Created:      %s\n", sess.CreatedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "Idle:         %s\n", formatDuration(time.Since(sess.LastActivity)))
				fmt.Fprintf(out, "Expired:      %t\n", s.IsExpired(ctx, a.manager.MaxAge()))
				fmt.Fprintf(out, "Messages:     %d\n", len(conv.Messages))
				fmt.Fprintf(out, "Agents:       %s\n", strings.Join(conv.AgentsInvolved, ", "))
				fmt.Fprintf(out, "Anxiety:      %s (peak %s, %d changes)\n", summary.Current, summary.Peak, summary.Events)
				return nil
			})
		},
	}
}

func newSessionResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop the session and everything stored with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.manager.ResetSession(ctx, opts.sessionKey); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %q reset\n", opts.sessionKey)
				return nil
			})
		},
	}
}

func newSessionExportCmd(opts *rootOptions) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				data, err := a.manager.ExportJSON(ctx, opts.sessionKey)
				if err != nil {
					return err
				}
				if outFile == "" {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				if err := os.WriteFile(outFile, data, 0600); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported session %q to %s\n", opts.sessionKey, outFile)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newSessionImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Restore sections from a JSON snapshot",
		Long: `Restore the session, user_data, conversation and settings sections of a
snapshot. Sections are applied in that order and each one is validated on its
own; a failing section stops the import but earlier sections stay applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res := a.manager.Import(ctx, opts.sessionKey, data)
				out := cmd.OutOrStdout()
				if len(res.Value.Applied) > 0 {
					fmt.Fprintf(out, "Applied: %s\n", strings.Join(res.Value.Applied, ", "))
				}
				if !res.OK() {
					return fmt.Errorf("import failed: %s", res.Reason())
				}
				fmt.Fprintf(out, "Imported session %q\n", opts.sessionKey)
				return nil
			})
		},
	}
}

func newSessionListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored session keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				keys, err := a.manager.Keys(ctx)
				if err != nil {
					return err
				}
				for _, key := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	}
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
