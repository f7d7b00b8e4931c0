package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/killswitch/journal"
)

func newJournalCmd() *cobra.Command {
	var (
		dbPath    string
		accountID string
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the SQLite close journal",
		Long: `Query close sweeps recorded in a SQLite journal.

Subcommands:
  show   - Show one sweep by id
  today  - List sweeps recorded today
  day    - List sweeps recorded on a specific day

Examples:
  killswitch journal show 01HMZ4Q9T1V7J2K8C6N3W5Y0RB
  killswitch journal today --account matchtrader-1
  killswitch journal day 2024-01-15 --db ./closes.db`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "./closes.db", "path to SQLite journal DB")
	cmd.PersistentFlags().StringVar(&accountID, "account", "", "only list this account id")

	open := func() (*journal.SQLiteJournal, error) {
		j, err := journal.NewSQLite(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	listDay := func(cmd *cobra.Command, day string) error {
		start, end, err := dayBounds(time.Local, day)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		j, err := open()
		if err != nil {
			return err
		}
		defer j.Close()

		recs, err := j.ListClosesBetween(accountID, start, end)
		if err != nil {
			return fmt.Errorf("query closes: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintf(out, "no closes on %s\n", day)
			return nil
		}
		for _, r := range recs {
			printClose(out, r)
		}
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show one close sweep",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				j, err := open()
				if err != nil {
					return err
				}
				defer j.Close()

				rec, err := j.GetClose(args[0])
				if err != nil {
					return err
				}
				printClose(cmd.OutOrStdout(), rec)
				if rec.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", rec.Error)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "today",
			Short: "List close sweeps recorded today",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return listDay(cmd, time.Now().Format("2006-01-02"))
			},
		},
		&cobra.Command{
			Use:   "day <YYYY-MM-DD>",
			Short: "List close sweeps recorded on a specific day",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return listDay(cmd, args[0])
			},
		},
	)
	return cmd
}

func printClose(w io.Writer, r journal.CloseRecord) {
	fmt.Fprintf(w, "%s  %s  %-16s %-12s %-24s matched %d closed %d failed %d\n",
		r.ID, r.Time.Local().Format("15:04:05"), r.AccountID, r.Platform, r.Symbols, r.Matched, r.Closed, r.Failed)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
