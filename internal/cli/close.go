package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/killswitch/broker"
	"github.com/rustyeddy/killswitch/orchestrator"
)

func newCloseCmd(rc *RootConfig) *cobra.Command {
	var (
		accountID string
		symbols   []string
	)

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Flatten an account now",
		Long: `Log in to one account and close its positions immediately, regardless
of the calendar. Without --symbols every position is closed.

Examples:
  killswitch close --account matchtrader-1
  killswitch close --account dxtrade-1 --symbols EURUSD,GBPUSD`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.setup(true)
			if err != nil {
				return err
			}
			defer a.close()

			acct, ok := orchestrator.Find(a.orch.Accounts, accountID)
			if !ok {
				return fmt.Errorf("unknown account %q", accountID)
			}

			filter := broker.NewSymbolFilter(symbols...)
			report, err := a.orch.Flatten(cmd.Context(), acct, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: filter %s, matched %d, closed %d\n", acct.ID, filter, report.Matched, len(report.Closed))
			for _, f := range report.Failures {
				fmt.Fprintf(out, "  ✗ %s: %v\n", f.Target, f.Err)
			}
			if !report.OK() {
				return fmt.Errorf("%d closes failed", len(report.Failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id to flatten (required)")
	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "comma separated symbols to close (default ALL)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
