package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/killswitch/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate accounts files",
		Long: `Manage accounts files.

Subcommands:
  init     - Write an example accounts file
  validate - Check an existing accounts file

Examples:
  killswitch config init -o accounts.yaml
  killswitch config validate -f accounts.yaml`,
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example accounts file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created example accounts file: %s\n", output)
			fmt.Fprintln(out, "\nEdit the credentials and run with:")
			fmt.Fprintf(out, "  killswitch run -c %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "accounts.yaml", "output file path (.yaml, .yml or .json)")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an accounts file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Interval: %s, journal: %s\n", cfg.Interval, cfg.Journal.Type)
			for _, a := range cfg.Accounts {
				p := a.Policy()
				fmt.Fprintf(out, "  %s: %s %s, impacts %s, window -%s/+%s, %d countries\n",
					a.ID, a.Platform, a.BaseURL, p.Impacts, p.Past, p.Future, len(p.CountrySymbols))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "path to accounts file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
