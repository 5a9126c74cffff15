// Package geoip2 geocodes IP addresses against a local GeoIP2 or GeoLite2
// City database.
package geoip2

import (
	"context"
	"fmt"
	"net"

	geoipdb "github.com/oschwald/geoip2-golang"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

const name = "geoip2"

func init() {
	provider.Register(provider.GeoIP2, provider.Constructor[provider.GeoIP2Config](
		func(cfg provider.GeoIP2Config) (domain.Provider, error) {
			return Open(cfg)
		}))
}

type cityReader interface {
	City(ip net.IP) (*geoipdb.City, error)
	Close() error
}

// Provider reads locations from an opened database. It is safe for
// concurrent use and must be closed.
type Provider struct {
	reader cityReader
	locale string
}

// Open opens the database at cfg.Database.
func Open(cfg provider.GeoIP2Config) (*Provider, error) {
	r, err := geoipdb.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open geoip2 database: %w", err)
	}
	return newProvider(r, cfg.Locale), nil
}

func newProvider(r cityReader, locale string) *Provider {
	if locale == "" {
		locale = "en"
	}
	return &Provider{reader: r, locale: locale}
}

func (p *Provider) Name() string { return name }

// Close releases the database.
func (p *Provider) Close() error { return p.reader.Close() }

// Geocode looks up the IP address in q.Text. A query locale overrides the
// configured one for place names.
func (p *Provider) Geocode(_ context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	ip := net.ParseIP(q.Text)
	if ip == nil {
		return nil, fmt.Errorf("%w: geoip2 only geocodes IP addresses", domain.ErrUnsupportedOperation)
	}
	if ip.IsLoopback() {
		return domain.Collection{{Locality: "localhost", Country: "localhost", ProvidedBy: name}}, nil
	}

	rec, err := p.reader.City(ip)
	if err != nil {
		return nil, fmt.Errorf("geoip2 lookup: %w", err)
	}
	// Unknown addresses decode to an empty record.
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 && rec.Country.IsoCode == "" {
		return domain.Collection{}, nil
	}

	locale := p.locale
	if q.Locale != "" {
		locale = q.Locale
	}

	loc := domain.Location{
		Coordinates: &domain.Coordinates{Latitude: rec.Location.Latitude, Longitude: rec.Location.Longitude},
		Locality:    localized(rec.City.Names, locale),
		PostalCode:  rec.Postal.Code,
		Country:     localized(rec.Country.Names, locale),
		CountryCode: rec.Country.IsoCode,
		Timezone:    rec.Location.TimeZone,
		ProvidedBy:  name,
	}
	for i, sub := range rec.Subdivisions {
		loc.AdminLevels = append(loc.AdminLevels, domain.AdminLevel{
			Level: i + 1,
			Name:  localized(sub.Names, locale),
			Code:  sub.IsoCode,
		})
	}
	return domain.Collection{loc}, nil
}

func localized(names map[string]string, locale string) string {
	if n, ok := names[locale]; ok {
		return n
	}
	return names["en"]
}
