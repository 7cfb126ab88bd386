package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change user settings",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "get [name]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var value any
				if len(args) == 1 {
					value = a.manager.Settings().GetSetting(ctx, opts.sessionKey, args[0], nil)
				} else {
					value = a.manager.Settings().GetSettings(ctx, opts.sessionKey)
				}
				data, err := json.MarshalIndent(value, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store one setting",
		Long: `Store one setting. The value is read as JSON when it parses as JSON
(true, 3, "dark", ["a","b"]), otherwise it is stored as a plain string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				value := parseSettingValue(args[1])
				if err := a.manager.Settings().SetSetting(ctx, opts.sessionKey, args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], value)
				return nil
			})
		},
	})

	return settingsCmd
}

func parseSettingValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
