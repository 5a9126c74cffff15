package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/geocoder-bundle/internal/config"
	"github.com/couchcryptid/geocoder-bundle/internal/observability"
	"github.com/couchcryptid/geocoder-bundle/internal/provider/factory"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every provider in the providers file can be built",
	Long: `Runs each provider definition through its factory without plugins and
reports the definitions whose options or dependencies are invalid. Chain
definitions are skipped; the providers they reference are checked on their own.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if providersFile != "" {
			cfg.ProvidersFile = providersFile
		}
		providersCfg, err := config.LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return err
		}

		logger := observability.NewLogger(cfg)
		factories := factory.NewRegistry(&http.Client{Timeout: cfg.HTTPTimeout}, logger)
		out := cmd.OutOrStdout()

		var failed int
		for _, name := range providersCfg.Names() {
			def := providersCfg.Providers[name]
			if def.Factory == "chain" {
				fmt.Fprintf(out, "  SKIP  %s (chain)\n", name)
				continue
			}
			p, err := factories.Create(def.Factory, def.Options)
			if err != nil {
				failed++
				fmt.Fprintf(out, "  FAIL  %s: %v\n", name, err)
				continue
			}
			if c, ok := p.(io.Closer); ok {
				_ = c.Close()
			}
			fmt.Fprintf(out, "  PASS  %s (%s)\n", name, def.Factory)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d providers invalid", failed, len(providersCfg.Providers))
		}
		fmt.Fprintf(out, "all %d providers valid\n", len(providersCfg.Providers))
		return nil
	},
}
