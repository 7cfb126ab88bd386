package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/harun/ezoverthinking/pkg/conversation"
	"github.com/spf13/cobra"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the overthinking agents",
		Long: `Send a message to the chat backend and record the turn in the session.
Without arguments an interactive prompt is started; type /reset to clear the
conversation, /history to print it and /quit to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if len(args) > 0 {
					return submit(ctx, out, a, opts.sessionKey, strings.Join(args, " "))
				}
				return chatLoop(ctx, cmd.InOrStdin(), out, a, opts.sessionKey)
			})
		},
	}
}

func submit(ctx context.Context, out io.Writer, a *app, key, text string) error {
	turn, err := a.runner.Submit(ctx, key, text)
	if err != nil {
		return err
	}
	printTurn(out, turn)
	return nil
}

func printTurn(out io.Writer, turn *conversation.Turn) {
	if turn.Reply == nil {
		return
	}
	agent := turn.Reply.AgentName
	if agent == "" {
		agent = "assistant"
	}
	fmt.Fprintf(out, "%s: %s\n", agent, turn.Reply.Content)
	if turn.LevelChanged {
		fmt.Fprintf(out, "  anxiety level: %s\n", turn.Level)
	}
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, a *app, key string) error {
	fmt.Fprintln(out, "Connected to", a.client.BaseURL())
	fmt.Fprintln(out, "Type /quit to exit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := a.manager.Session(key).ClearMessages(ctx); err != nil {
				return err
			}
			if err := a.client.Reset(ctx); err != nil {
				fmt.Fprintf(out, "Backend reset failed: %v\n", err)
			}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		case "/history":
			for _, msg := range a.manager.Session(key).Messages(ctx) {
				who := msg.Role
				if msg.AgentName != "" {
					who = msg.AgentName
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", msg.ID, who, msg.Content)
			}
			continue
		}

		// Protocol errors end one turn, not the whole prompt.
		if err := submit(ctx, out, a, key, line); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}
