package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newCheckCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the accounts file and test every login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rc.setup(false)
			if err != nil {
				return err
			}
			defer a.close()

			failed := a.orch.CheckLogins(cmd.Context())

			out := cmd.OutOrStdout()
			for _, acct := range a.orch.Accounts {
				if err, ok := failed[acct.ID]; ok {
					fmt.Fprintf(out, "✗ %s (%s): %v\n", acct.ID, acct.Platform, err)
					continue
				}
				fmt.Fprintf(out, "✓ %s (%s)\n", acct.ID, acct.Platform)
			}

			if len(failed) > 0 {
				ids := make([]string, 0, len(failed))
				for id := range failed {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				return fmt.Errorf("%d of %d logins failed: %v", len(failed), len(a.orch.Accounts), ids)
			}
			return nil
		},
	}
}
