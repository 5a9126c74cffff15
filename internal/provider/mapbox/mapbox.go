// Package mapbox implements forward geocoding with the Mapbox Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

const (
	name           = "mapbox"
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5"
)

func init() {
	provider.Register(provider.Mapbox, provider.Constructor[provider.MapboxConfig](
		func(cfg provider.MapboxConfig) (domain.Provider, error) {
			return New(cfg), nil
		}))
}

// Provider calls the Mapbox Geocoding API.
type Provider struct {
	token   string
	country string
	mode    string
	client  provider.HTTPClient
	baseURL string
}

// New creates a Mapbox provider. An empty mode selects mapbox.places.
func New(cfg provider.MapboxConfig) *Provider {
	mode := cfg.Mode
	if mode == "" {
		mode = provider.MapboxPlaces
	}
	return &Provider{
		token:   cfg.AccessToken,
		country: cfg.Country,
		mode:    mode,
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

	params := url.Values{"access_token": {p.token}}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if p.country != "" {
		params.Set("country", p.country)
	}
	if q.Locale != "" {
		params.Set("language", q.Locale)
	}
	u := fmt.Sprintf("%s/%s/%s.json?%s", p.baseURL, p.mode, url.PathEscape(q.Text), params.Encode())

	body, err := provider.Fetch(ctx, p.client, u, nil)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrInvalidServerResponse, err)
	}

	out := make(domain.Collection, 0, len(resp.Features))
	for _, f := range resp.Features {
		out = append(out, f.location())
	}
	return out, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64      `json:"center"` // [lon, lat]
	PlaceName string         `json:"place_name"`
	Text      string         `json:"text"`
	Address   string         `json:"address"`
	PlaceType []string       `json:"place_type"`
	Context   []contextEntry `json:"context"`
}

type contextEntry struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code"`
}

func (f feature) location() domain.Location {
	loc := domain.Location{
		FormattedAddress: f.PlaceName,
		StreetNumber:     f.Address,
		ProvidedBy:       name,
	}
	if len(f.Center) == 2 {
		loc.Coordinates = &domain.Coordinates{Latitude: f.Center[1], Longitude: f.Center[0]}
	}
	if len(f.PlaceType) > 0 && f.PlaceType[0] == "address" {
		loc.StreetName = f.Text
	}
	for _, c := range f.Context {
		kind, _, _ := strings.Cut(c.ID, ".")
		switch kind {
		case "postcode":
			loc.PostalCode = c.Text
		case "place":
			loc.Locality = c.Text
		case "locality", "neighborhood":
			if loc.SubLocality == "" {
				loc.SubLocality = c.Text
			}
		case "region":
			_, code, _ := strings.Cut(c.ShortCode, "-")
			loc.AdminLevels = append(loc.AdminLevels, domain.AdminLevel{Level: 1, Name: c.Text, Code: code})
		case "district":
			loc.AdminLevels = append(loc.AdminLevels, domain.AdminLevel{Level: 2, Name: c.Text})
		case "country":
			loc.Country = c.Text
			loc.CountryCode = strings.ToUpper(c.ShortCode)
		}
	}
	return loc
}
