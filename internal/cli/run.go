package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/killswitch/calendar"
	"github.com/rustyeddy/killswitch/internal/metrics"
	"github.com/rustyeddy/killswitch/scheduler"
)

func newRunCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the calendar and flatten accounts ahead of news",
		Long: `Run the kill switch until interrupted.

Startup tests every account's login (failures are logged, not fatal) and
fetches the calendar once (fatal if it fails). After that the calendar is
refreshed at the top of every hour and every account is evaluated on each
tick.

Example:
  killswitch run -c accounts.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runService(ctx, rc)
		},
	}
}

func runService(ctx context.Context, rc *RootConfig) error {
	a, err := rc.setup(true)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info("starting",
		zap.String("version", version),
		zap.Int("accounts", len(a.orch.Accounts)),
		zap.Duration("interval", a.cfg.Interval.Std()),
		zap.Bool("parallel", a.orch.Parallel),
		zap.String("journal", a.cfg.Journal.Type),
	)

	if failed := a.orch.CheckLogins(ctx); len(failed) > 0 {
		a.log.Warn("some accounts failed the login check",
			zap.Int("failed", len(failed)),
			zap.Int("accounts", len(a.orch.Accounts)),
		)
	}

	store := calendar.NewStore(nil)
	loop := scheduler.New(store, a.source, a.orch, a.log)
	loop.Interval = a.cfg.Interval.Std()
	loop.Metrics = a.metrics

	if err := loop.Prime(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if a.cfg.MetricsAddr != "" {
		health := func() (map[string]any, error) {
			t := store.Current()
			body := map[string]any{
				"events":     t.Len(),
				"fetched_at": t.FetchedAt(),
				"accounts":   len(a.orch.Accounts),
			}
			if t == nil {
				return body, errors.New("no calendar loaded")
			}
			return body, nil
		}
		g.Go(func() error {
			if err := metrics.Serve(gctx, a.cfg.MetricsAddr, metrics.Router(a.metrics, health), a.log); err != nil {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
