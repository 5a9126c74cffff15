package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/geocoder-bundle/internal/backfill"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Geocode stored places that have an address but no coordinates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() {
			if err := a.close(); err != nil {
				a.logger.Error("close error", "error", err)
			}
		}()

		st, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		// The service only publishes here; the runner flushes its own batches.
		svc := a.placeService(st, a.publisher())
		runner := backfill.New(st.repo, st.persister, a.listener(), svc, a.clock, a.logger, a.metrics,
			backfill.Options{
				BatchSize:   a.cfg.BatchSize,
				MaxBackoff:  a.cfg.BackfillMaxBackoff,
				MaxAttempts: a.cfg.BackfillMaxAttempts,
			})

		stats, err := runner.Run(ctx)
		a.logger.Info("backfill finished",
			"batches", stats.Batches,
			"scanned", stats.Scanned,
			"geocoded", stats.Geocoded,
			"failed", stats.Failed,
		)
		return err
	},
}
