package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/ezoverthinking/internal/config"
	"github.com/harun/ezoverthinking/internal/logger"
	"github.com/harun/ezoverthinking/internal/observability"
	"github.com/harun/ezoverthinking/pkg/session"
	"github.com/spf13/cobra"
)

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reset sessions that have been idle past the max age",
		Long: `Run the expiry sweeper. With --once every stored session is checked a
single time. Otherwise the sweep runs on the configured cron schedule until
interrupted, serving Prometheus metrics when enabled and reloading the max
age whenever the config file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sweeper, err := session.NewSweeper(a.manager, a.cfg.Session.SweepSchedule)
				if err != nil {
					return err
				}
				if once {
					stats, err := sweeper.SweepNow(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Checked %d sessions, expired %d, pruned %d\n",
						stats.Checked, stats.Expired, stats.Pruned)
					return nil
				}
				return runSweeper(ctx, a, sweeper)
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "sweep once and exit")
	return cmd
}

func runSweeper(ctx context.Context, a *app, sweeper *session.Sweeper) error {
	sweepLog := logger.Component("sweep")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	if a.cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				sweepLog.Error().Err(err).Str("addr", srv.Addr).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		sweepLog.Info().Str("addr", srv.Addr).Msg("Serving metrics")
	}

	watcher, err := config.NewWatcher(a.loader, func(cfg *config.Config) {
		maxAge := cfg.Session.MaxAge()
		if maxAge == a.manager.MaxAge() {
			return
		}
		a.manager.SetMaxAge(maxAge)
		observability.RecordConfigAudit(ctx, "reload", "watcher", map[string]interface{}{
			"max_age_hours": cfg.Session.MaxAgeHours,
		})
		sweepLog.Info().Dur("max_age", maxAge).Msg("Session max age reloaded")
	})
	if err != nil {
		sweepLog.Warn().Err(err).Msg("Config reload disabled")
	} else if err := watcher.Start(); err != nil {
		watcher.Stop()
		sweepLog.Warn().Err(err).Msg("Config reload disabled")
	} else {
		defer watcher.Stop()
	}

	sweepLog.Info().Str("schedule", sweeper.Schedule()).Msg("Sweeper running")
	<-ctx.Done()
	sweepLog.Info().Msg("Sweeper shutting down")
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}
