// Package maxmind geocodes IP addresses with the MaxMind legacy CSV web
// services (City/ISP/Org "f" and Omni "e").
package maxmind

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

const (
	name       = "maxmind"
	defaultURL = "https://geoip.maxmind.com"
)

func init() {
	provider.Register(provider.MaxMind, provider.Constructor[provider.MaxMindConfig](
		func(cfg provider.MaxMindConfig) (domain.Provider, error) {
			return New(cfg), nil
		}))
}

// Column layouts of each service. Every response ends with an error column.
var fields = map[string][]string{
	provider.MaxMindCityExtended: {
		"countryCode", "regionCode", "locality", "postalCode", "latitude", "longitude",
		"metroCode", "areaCode", "isp", "organization", "error",
	},
	provider.MaxMindOmni: {
		"countryCode", "countryName", "regionCode", "region", "locality", "latitude",
		"longitude", "metroCode", "areaCode", "timezone", "continentCode", "postalCode",
		"isp", "organization", "domain", "asNumber", "netspeed", "userType",
		"accuracyRadius", "countryConfidence", "cityConfidence", "regionConfidence",
		"postalConfidence", "error",
	},
}

// Provider queries a MaxMind web service.
type Provider struct {
	apiKey   string
	endpoint string
	baseURL  string
	client   provider.HTTPClient
}

// New creates a MaxMind provider. An empty endpoint selects City/ISP/Org.
func New(cfg provider.MaxMindConfig) *Provider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = provider.MaxMindCityExtended
	}
	return &Provider{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		baseURL:  defaultURL,
		client:   provider.ResolveHTTPClient(cfg.Client, nil),
	}
}

func (p *Provider) Name() string { return name }

// Geocode looks up the IP address in q.Text.
func (p *Provider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	ip := net.ParseIP(q.Text)
	if ip == nil {
		return nil, fmt.Errorf("%w: maxmind only geocodes IP addresses", domain.ErrUnsupportedOperation)
	}
	if ip.IsLoopback() {
		return domain.Collection{{Locality: "localhost", Country: "localhost", ProvidedBy: name}}, nil
	}
	if ip.To4() == nil && p.endpoint != provider.MaxMindOmni {
		return nil, fmt.Errorf("%w: maxmind serves IPv6 addresses through the omni service only", domain.ErrUnsupportedOperation)
	}

	u := fmt.Sprintf("%s/%s?%s", p.baseURL, p.endpoint, url.Values{"l": {p.apiKey}, "i": {q.Text}}.Encode())
	body, err := provider.Fetch(ctx, p.client, u, nil)
	if err != nil {
		return nil, err
	}
	return p.parse(body)
}

func (p *Provider) parse(body []byte) (domain.Collection, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidServerResponse, err)
	}

	switch record[len(record)-1] {
	case "INVALID_LICENSE_KEY", "LICENSE_REQUIRED":
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, record[len(record)-1])
	case "IP_NOT_FOUND":
		return domain.Collection{}, nil
	}

	cols := fields[p.endpoint]
	if len(record) != len(cols) {
		return nil, fmt.Errorf("%w: got %d fields, want %d", domain.ErrInvalidServerResponse, len(record), len(cols))
	}
	data := make(map[string]string, len(cols))
	for i, c := range cols {
		data[c] = record[i]
	}
	if data["error"] != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidServerResponse, data["error"])
	}

	loc := domain.Location{
		Locality:    data["locality"],
		PostalCode:  data["postalCode"],
		Country:     data["countryName"],
		CountryCode: data["countryCode"],
		Timezone:    data["timezone"],
		ProvidedBy:  name,
	}
	if data["region"] != "" || data["regionCode"] != "" {
		loc.AdminLevels = []domain.AdminLevel{{Level: 1, Name: data["region"], Code: data["regionCode"]}}
	}
	lat, latErr := strconv.ParseFloat(data["latitude"], 64)
	lon, lonErr := strconv.ParseFloat(data["longitude"], 64)
	if latErr == nil && lonErr == nil {
		loc.Coordinates = &domain.Coordinates{Latitude: lat, Longitude: lon}
	}
	return domain.Collection{loc}, nil
}
