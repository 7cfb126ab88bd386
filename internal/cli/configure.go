package cli

import (
	"fmt"

	"github.com/harun/ezoverthinking/internal/config"
	"github.com/harun/ezoverthinking/internal/observability"
	"github.com/spf13/cobra"
)

func newConfigureCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Run interactive configuration wizard",
		Long: `Run an interactive configuration wizard to set up ezoverthinking.
The wizard asks for the chat backend address, auth token, session store and
expiry, and log level.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Create wizard
			wizard := config.NewWizardIO(cmd.InOrStdin(), cmd.OutOrStdout())

			// Run wizard
			cfg, err := wizard.Run()
			if err != nil {
				return fmt.Errorf("configuration failed: %w", err)
			}

			// Validate configuration
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Save configuration
			loader := config.NewLoader(opts.cfgFile)
			if err := loader.Save(cfg); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			observability.RecordConfigAudit(cmd.Context(), "configure", "wizard", map[string]interface{}{
				"backend": cfg.Session.Backend,
			})

			configPath := loader.GetConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "\nConfiguration saved to: %s\n", configPath)
			fmt.Fprintln(cmd.OutOrStdout(), "\nYou can now start chatting with: ezoverthinking chat")

			return nil
		},
	}
}
