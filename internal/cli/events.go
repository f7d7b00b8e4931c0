package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/killswitch/calendar"
	"github.com/rustyeddy/killswitch/orchestrator"
)

func newEventsCmd(rc *RootConfig) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show what each account would close right now",
		Long: `Fetch the calendar once and print, per account, the news inside its
lookback and lookahead windows and the symbols they map to. Nothing is
logged in to and nothing is closed.

Examples:
  killswitch events -c accounts.yaml
  killswitch events -c accounts.yaml --account tradelocker-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.setup(false)
			if err != nil {
				return err
			}
			defer a.close()

			accounts := a.orch.Accounts
			if accountID != "" {
				acct, ok := orchestrator.Find(accounts, accountID)
				if !ok {
					return fmt.Errorf("unknown account %q", accountID)
				}
				accounts = []orchestrator.Account{acct}
			}

			events, err := a.source.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d events at %s\n", len(events), now.Format(time.RFC3339))
			for _, acct := range accounts {
				printAssessment(out, acct, acct.Policy.Assess(events, now))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "only show this account id")
	return cmd
}

func printAssessment(w io.Writer, acct orchestrator.Account, a calendar.Assessment) {
	action := "no action"
	if len(a.FutureSymbols) > 0 {
		action = "would close " + strings.Join(a.FutureSymbols, ",")
	}

	fmt.Fprintf(w, "\n%s (%s): %s\n", acct.ID, acct.Platform, action)
	fmt.Fprintf(w, "  impacts %s, past %s, future %s\n", acct.Policy.Impacts, acct.Policy.Past, acct.Policy.Future)
	fmt.Fprintf(w, "  past:   %s\n", symbolList(a.PastSymbols))
	fmt.Fprintf(w, "  future: %s\n", symbolList(a.FutureSymbols))
	for _, e := range a.FutureEvents {
		fmt.Fprintf(w, "    %s\n", e)
	}
}

func symbolList(symbols []string) string {
	if len(symbols) == 0 {
		return "-"
	}
	return strings.Join(symbols, ",")
}
