package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiansir-zhe/cloud-tool/internal/config"
)

// RegisterConfigCommands adds configuration commands.
func RegisterConfigCommands(root *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the configuration",
	}
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigInitCmd())
	root.AddCommand(configCmd)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEffective()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", config.Path(), data)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var (
		accountID string
		region    string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			if accountID != "" {
				cfg.AccountID = accountID
			}
			if region != "" {
				cfg.Region = region
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render(
				"the access gate is seeded with the built-in default secret; run 'cvmbatch gate rotate' or set "+config.EnvGateSecret))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Default account id (uin)")
	cmd.Flags().StringVar(&region, "region", "", "Default region")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
