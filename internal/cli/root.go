package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// DefaultSessionKey is the key the CLI works on when --session is not given.
const DefaultSessionKey = "cli"

// rootOptions carries the global flags down to subcommands.
type rootOptions struct {
	cfgFile    string
	logLevel   string
	sessionKey string
}

// NewRootCmd builds the command tree. Each call returns a fresh tree so
// flag values never leak between executions.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "ezoverthinking",
		Short: "ezOverthinking - session keeper for an anxiety-escalating chat agent",
		Long: `ezOverthinking talks to an overthinking chat backend and keeps the
per-user session state around it: identity and activity, conversation
history, the anxiety escalation history and user settings.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.ezoverthinking/config.json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&opts.sessionKey, "session", "s", DefaultSessionKey, "session key to operate on")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(
		newChatCmd(opts),
		newSessionCmd(opts),
		newSettingsCmd(opts),
		newStatusCmd(opts),
		newSweepCmd(opts),
		newConfigureCmd(opts),
	)
	return rootCmd
}

// Execute runs the command tree against os.Args. It is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetRootCmd returns a fresh root command for testing
func GetRootCmd() *cobra.Command {
	return NewRootCmd()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
