package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

var (
	geocodeProvider string
	geocodeLimit    int
	geocodeLocale   string
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Geocode an address and print the candidates as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close() //nolint:errcheck // process exits next

		var p domain.Provider = a.providers
		if geocodeProvider != "" {
			if p, err = a.providers.Using(geocodeProvider); err != nil {
				return err
			}
		}

		q := domain.NewGeocodeQuery(strings.Join(args, " "))
		if geocodeLimit > 0 {
			q = q.WithLimit(geocodeLimit)
		}
		if geocodeLocale != "" {
			q = q.WithLocale(geocodeLocale)
		}

		results, err := p.Geocode(cmd.Context(), q)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeProvider, "provider", "", "provider name (default provider when empty)")
	geocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 0, "maximum number of candidates")
	geocodeCmd.Flags().StringVar(&geocodeLocale, "locale", "", "result language, e.g. en or de")
}
