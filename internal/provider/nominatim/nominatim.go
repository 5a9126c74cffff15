// Package nominatim implements forward geocoding against a Nominatim server
// such as the public OpenStreetMap instance.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

const name = "nominatim"

func init() {
	provider.Register(provider.Nominatim, provider.Constructor[provider.NominatimConfig](
		func(cfg provider.NominatimConfig) (domain.Provider, error) {
			return New(cfg), nil
		}))
}

// Provider calls the Nominatim search endpoint. The public usage policy
// requires an identifying User-Agent on every request.
type Provider struct {
	rootURL   string
	userAgent string
	referer   string
	client    provider.HTTPClient
}

// New creates a Nominatim provider. RootURL must not end in a slash.
func New(cfg provider.NominatimConfig) *Provider {
	return &Provider{
		rootURL:   cfg.RootURL,
		userAgent: cfg.UserAgent,
		referer:   cfg.Referer,
		client:    provider.ResolveHTTPClient(cfg.Client, nil),
	}
}

func (p *Provider) Name() string { return name }

// Geocode converts an address to candidate locations.
func (p *Provider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	if strings.TrimSpace(q.Text) == "" {
		return domain.Collection{}, nil
	}

	params := url.Values{
		"q":              {q.Text},
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Locale != "" {
		params.Set("accept-language", q.Locale)
	}

	header := http.Header{"User-Agent": {p.userAgent}}
	if p.referer != "" {
		header.Set("Referer", p.referer)
	}

	body, err := provider.Fetch(ctx, p.client, p.rootURL+"/search?"+params.Encode(), header)
	if err != nil {
		return nil, err
	}

	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrInvalidServerResponse, err)
	}

	out := make(domain.Collection, 0, len(places))
	for _, pl := range places {
		loc, err := pl.location()
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

// Nominatim returns coordinates as strings.
type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
}

type address struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	Suburb      string `json:"suburb"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Postcode    string `json:"postcode"`
	State       string `json:"state"`
	County      string `json:"county"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

func (pl place) location() (domain.Location, error) {
	lat, err := strconv.ParseFloat(pl.Lat, 64)
	if err != nil {
		return domain.Location{}, fmt.Errorf("%w: latitude %q", domain.ErrInvalidServerResponse, pl.Lat)
	}
	lon, err := strconv.ParseFloat(pl.Lon, 64)
	if err != nil {
		return domain.Location{}, fmt.Errorf("%w: longitude %q", domain.ErrInvalidServerResponse, pl.Lon)
	}

	a := pl.Address
	loc := domain.Location{
		Coordinates:      &domain.Coordinates{Latitude: lat, Longitude: lon},
		FormattedAddress: pl.DisplayName,
		StreetNumber:     a.HouseNumber,
		StreetName:       a.Road,
		SubLocality:      a.Suburb,
		Locality:         firstNonEmpty(a.City, a.Town, a.Village),
		PostalCode:       a.Postcode,
		Country:          a.Country,
		CountryCode:      strings.ToUpper(a.CountryCode),
		ProvidedBy:       name,
	}
	if a.State != "" {
		loc.AdminLevels = append(loc.AdminLevels, domain.AdminLevel{Level: 1, Name: a.State})
	}
	if a.County != "" {
		loc.AdminLevels = append(loc.AdminLevels, domain.AdminLevel{Level: 2, Name: a.County})
	}
	return loc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
