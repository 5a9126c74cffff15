package provider

import (
	"log/slog"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

// MaxMind web service tiers.
const (
	MaxMindCityExtended = "f"
	MaxMindOmni         = "e"
)

// Mapbox geocoding endpoints.
const (
	MapboxPlaces          = "mapbox.places"
	MapboxPlacesPermanent = "mapbox.places-permanent"
)

// MaxMindConfig configures the MaxMind web service client.
type MaxMindConfig struct {
	APIKey   string
	Endpoint string
	Client   HTTPClient
}

// GeoIP2Config configures the local GeoIP2 database reader.
type GeoIP2Config struct {
	Database string
	Locale   string
}

// MapboxConfig configures the Mapbox client.
type MapboxConfig struct {
	AccessToken string
	Country     string
	Mode        string
	Client      HTTPClient
}

// GoogleMapsConfig configures the Google Maps client.
type GoogleMapsConfig struct {
	APIKey string
	Region string
	Client HTTPClient
}

// NominatimConfig configures the Nominatim client.
type NominatimConfig struct {
	RootURL   string
	UserAgent string
	Referer   string
	Client    HTTPClient
}

// ChainConfig configures a provider that tries others in order.
type ChainConfig struct {
	Providers []domain.Provider
	Logger    *slog.Logger
}
