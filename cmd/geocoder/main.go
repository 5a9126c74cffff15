// Command geocoder serves the geocoding API, geocodes single addresses from
// the command line, and backfills coordinates of stored places.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Provider packages register their constructors with the factories.
	_ "github.com/couchcryptid/geocoder-bundle/internal/provider/chain"
	_ "github.com/couchcryptid/geocoder-bundle/internal/provider/geoip2"
	_ "github.com/couchcryptid/geocoder-bundle/internal/provider/googlemaps"
	_ "github.com/couchcryptid/geocoder-bundle/internal/provider/mapbox"
	_ "github.com/couchcryptid/geocoder-bundle/internal/provider/maxmind"
	_ "github.com/couchcryptid/geocoder-bundle/internal/provider/nominatim"
)

var providersFile string

var rootCmd = &cobra.Command{
	Use:   "geocoder",
	Short: "Geocode addresses with configurable providers",
	Long: `
geocoder builds the providers declared in the providers file and uses them to
fill coordinates of places as they are written, to answer geocoding requests
over HTTP, and to backfill places stored without coordinates.
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&providersFile, "providers", "",
		"providers file (overrides GEOCODER_PROVIDERS_FILE)")
	rootCmd.AddCommand(serveCmd, geocodeCmd, backfillCmd, validateCmd)
}

func main() {
	_ = godotenv.Load(".env")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
