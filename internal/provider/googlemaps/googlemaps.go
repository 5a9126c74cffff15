// Package googlemaps implements forward geocoding with the Google Maps
// Geocoding API.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

const (
	name           = "google_maps"
	defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
)

func init() {
	provider.Register(provider.GoogleMaps, provider.Constructor[provider.GoogleMapsConfig](
		func(cfg provider.GoogleMapsConfig) (domain.Provider, error) {
			return New(cfg), nil
		}))
}

// Provider calls the Google Maps Geocoding API. Requests without an API key
// are accepted by Google at a very low quota.
type Provider struct {
	apiKey  string
	region  string
	client  provider.HTTPClient
	baseURL string
}

// New creates a Google Maps provider.
func New(cfg provider.GoogleMapsConfig) *Provider {
	return &Provider{
		apiKey:  cfg.APIKey,
		region:  cfg.Region,
		client:  provider.ResolveHTTPClient(cfg.Client, nil),
		baseURL: defaultBaseURL,
	}
}

func (p *Provider) Name() string { return name }

// Geocode converts an address to candidate locations.
func (p *Provider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	if strings.TrimSpace(q.Text) == "" {
		return domain.Collection{}, nil
	}

	params := url.Values{"address": {q.Text}}
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
	}
	if p.region != "" {
		params.Set("region", p.region)
	}
	if q.Locale != "" {
		params.Set("language", q.Locale)
	}

	body, err := provider.Fetch(ctx, p.client, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrInvalidServerResponse, err)
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return domain.Collection{}, nil
	case "REQUEST_DENIED":
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, resp.ErrorMessage)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, resp.ErrorMessage)
	default:
		return nil, fmt.Errorf("%w: status %s: %s", domain.ErrInvalidServerResponse, resp.Status, resp.ErrorMessage)
	}

	results := resp.Results
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	out := make(domain.Collection, 0, len(results))
	for _, r := range results {
		out = append(out, r.location())
	}
	return out, nil
}

// Google API response types.

type response struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message"`
	Results      []result `json:"results"`
}

type result struct {
	FormattedAddress string      `json:"formatted_address"`
	Components       []component `json:"address_components"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

type component struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

var adminLevelTypes = []string{
	"administrative_area_level_1",
	"administrative_area_level_2",
	"administrative_area_level_3",
	"administrative_area_level_4",
	"administrative_area_level_5",
}

func (r result) location() domain.Location {
	loc := domain.Location{
		Coordinates:      &domain.Coordinates{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng},
		FormattedAddress: r.FormattedAddress,
		ProvidedBy:       name,
	}
	for _, c := range r.Components {
		has := func(t string) bool { return slices.Contains(c.Types, t) }
		switch {
		case has("street_number"):
			loc.StreetNumber = c.LongName
		case has("route"):
			loc.StreetName = c.LongName
		case has("locality"), has("postal_town") && loc.Locality == "":
			loc.Locality = c.LongName
		case has("sublocality"):
			loc.SubLocality = c.LongName
		case has("postal_code"):
			loc.PostalCode = c.LongName
		case has("country"):
			loc.Country = c.LongName
			loc.CountryCode = c.ShortName
		default:
			for i, t := range adminLevelTypes {
				if has(t) {
					loc.AdminLevels = append(loc.AdminLevels, domain.AdminLevel{Level: i + 1, Name: c.LongName, Code: c.ShortName})
				}
			}
		}
	}
	slices.SortFunc(loc.AdminLevels, func(a, b domain.AdminLevel) int { return a.Level - b.Level })
	return loc
}
