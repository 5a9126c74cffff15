package factory

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
	"github.com/couchcryptid/geocoder-bundle/internal/provider/options"
)

const pkgPrefix = "github.com/couchcryptid/geocoder-bundle/internal/provider/"

// DefaultNominatimURL is the public OpenStreetMap Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

var httpClientTypes = []options.TypeCheck{options.TypeOf[provider.HTTPClient](), options.Null}

func httpClient(o options.Options, injected provider.HTTPClient) provider.HTTPClient {
	return provider.ResolveHTTPClient(options.Value[provider.HTTPClient](o, "http_client"), injected)
}

// NewMaxMind creates the MaxMind web service factory. client is used when
// the options carry no http_client.
func NewMaxMind(client provider.HTTPClient) Factory {
	return New("maxmind",
		[]provider.Dependency{{Capability: provider.MaxMind, Package: pkgPrefix + "maxmind"}},
		func(r *options.Resolver) {
			r.SetDefaults(map[string]any{
				"http_client": nil,
				"endpoint":    provider.MaxMindCityExtended,
			})
			r.SetRequired("api_key")
			r.SetAllowedTypes("api_key", options.String)
			r.SetAllowedTypes("http_client", httpClientTypes...)
			r.SetAllowedValues("endpoint", provider.MaxMindCityExtended, provider.MaxMindOmni)
		},
		func(o options.Options) (domain.Provider, error) {
			return construct(provider.MaxMind, provider.MaxMindConfig{
				APIKey:   o.String("api_key"),
				Endpoint: o.String("endpoint"),
				Client:   httpClient(o, client),
			})
		},
	)
}

// NewGeoIP2 creates the factory for local GeoIP2/GeoLite2 City databases.
func NewGeoIP2() Factory {
	return New("geoip2",
		[]provider.Dependency{{Capability: provider.GeoIP2, Package: pkgPrefix + "geoip2"}},
		func(r *options.Resolver) {
			r.SetDefaults(map[string]any{"locale": "en"})
			r.SetRequired("database")
			r.SetAllowedTypes("database", options.String)
			r.SetAllowedTypes("locale", options.String)
		},
		func(o options.Options) (domain.Provider, error) {
			return construct(provider.GeoIP2, provider.GeoIP2Config{
				Database: o.String("database"),
				Locale:   o.String("locale"),
			})
		},
	)
}

// NewMapbox creates the Mapbox factory.
func NewMapbox(client provider.HTTPClient) Factory {
	return New("mapbox",
		[]provider.Dependency{{Capability: provider.Mapbox, Package: pkgPrefix + "mapbox"}},
		func(r *options.Resolver) {
			r.SetDefaults(map[string]any{
				"http_client": nil,
				"country":     nil,
				"mode":        provider.MapboxPlaces,
			})
			r.SetRequired("access_token")
			r.SetAllowedTypes("access_token", options.String)
			r.SetAllowedTypes("country", options.String, options.Null)
			r.SetAllowedTypes("http_client", httpClientTypes...)
			r.SetAllowedValues("mode", provider.MapboxPlaces, provider.MapboxPlacesPermanent)
		},
		func(o options.Options) (domain.Provider, error) {
			return construct(provider.Mapbox, provider.MapboxConfig{
				AccessToken: o.String("access_token"),
				Country:     o.String("country"),
				Mode:        o.String("mode"),
				Client:      httpClient(o, client),
			})
		},
	)
}

// NewGoogleMaps creates the Google Maps factory.
func NewGoogleMaps(client provider.HTTPClient) Factory {
	return New("google_maps",
		[]provider.Dependency{{Capability: provider.GoogleMaps, Package: pkgPrefix + "googlemaps"}},
		func(r *options.Resolver) {
			r.SetDefaults(map[string]any{
				"http_client": nil,
				"api_key":     nil,
				"region":      nil,
			})
			r.SetAllowedTypes("api_key", options.String, options.Null)
			r.SetAllowedTypes("region", options.String, options.Null)
			r.SetAllowedTypes("http_client", httpClientTypes...)
		},
		func(o options.Options) (domain.Provider, error) {
			return construct(provider.GoogleMaps, provider.GoogleMapsConfig{
				APIKey: o.String("api_key"),
				Region: o.String("region"),
				Client: httpClient(o, client),
			})
		},
	)
}

// NewNominatim creates the Nominatim factory. Nominatim's usage policy
// requires an identifying user agent.
func NewNominatim(client provider.HTTPClient) Factory {
	return New("nominatim",
		[]provider.Dependency{{Capability: provider.Nominatim, Package: pkgPrefix + "nominatim"}},
		func(r *options.Resolver) {
			r.SetDefaults(map[string]any{
				"http_client": nil,
				"root_url":    DefaultNominatimURL,
				"referer":     nil,
			})
			r.SetRequired("user_agent")
			r.SetAllowedTypes("user_agent", options.String)
			r.SetAllowedTypes("root_url", options.String)
			r.SetAllowedTypes("referer", options.String, options.Null)
			r.SetAllowedTypes("http_client", httpClientTypes...)
			r.SetNormalizer("root_url", normalizeRootURL)
			r.SetNormalizer("user_agent", func(_ options.Options, v any) (any, error) {
				if strings.TrimSpace(v.(string)) == "" {
					return nil, errors.New("must not be blank")
				}
				return v, nil
			})
		},
		func(o options.Options) (domain.Provider, error) {
			return construct(provider.Nominatim, provider.NominatimConfig{
				RootURL:   o.String("root_url"),
				UserAgent: o.String("user_agent"),
				Referer:   o.String("referer"),
				Client:    httpClient(o, client),
			})
		},
	)
}

func normalizeRootURL(_ options.Options, v any) (any, error) {
	raw := strings.TrimRight(v.(string), "/")
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("must be an absolute http(s) URL")
	}
	return raw, nil
}

// NewChain creates the factory of a provider trying others in order.
func NewChain(logger *slog.Logger) Factory {
	return New("chain",
		[]provider.Dependency{{Capability: provider.Chain, Package: pkgPrefix + "chain"}},
		func(r *options.Resolver) {
			r.SetRequired("providers")
			r.SetAllowedTypes("providers", options.TypeOf[[]domain.Provider]())
		},
		func(o options.Options) (domain.Provider, error) {
			providers := options.Value[[]domain.Provider](o, "providers")
			if len(providers) == 0 {
				return nil, errors.New("chain needs at least one provider")
			}
			return construct(provider.Chain, provider.ChainConfig{
				Providers: providers,
				Logger:    logger,
			})
		},
	)
}
