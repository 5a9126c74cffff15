package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/geocoder-bundle/internal/adapter/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the geocoding and places HTTP API",
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
		svc := a.placeService(st, a.publisher())
		srv := httpadapter.NewServer(a.cfg.HTTPAddr, st, a.providers, svc, a.logger)

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				a.logger.Error("http server error", "error", err)
				return err
			}
		}
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}

		a.logger.Info("shutdown complete")
		return nil
	},
}
