// Package cli wires the killswitch commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootConfig holds the persistent flags shared by every command.
type RootConfig struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

func NewRootCmd() *cobra.Command {
	rc := &RootConfig{}

	cmd := &cobra.Command{
		Use:   "killswitch",
		Short: "Flatten trading accounts ahead of high-impact news",
		Long: `Killswitch watches the economic calendar and closes open positions on
MatchTrader, DXtrade and TradeLocker accounts before news that affects them.

Each account lists the countries it cares about, the symbols those countries
move, the impact levels that matter and how far ahead to look. When an event
falls inside that window the account is logged in and its matching positions
are closed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&rc.ConfigPath, "config", "c", "accounts.yaml", "path to accounts file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "", "override log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&rc.LogFormat, "log-format", "", "override log format: console|json")

	cmd.AddCommand(
		newRunCmd(rc),
		newCheckCmd(rc),
		newEventsCmd(rc),
		newCloseCmd(rc),
		newConfigCmd(),
		newJournalCmd(),
		newVersionCmd(),
	)

	return cmd
}

func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
