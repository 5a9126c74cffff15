package geoip2

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"reflect"
	"testing"

	geoipdb "github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

type fakeReader struct {
	records map[string]*geoipdb.City
	err     error
	lookups int
	closed  bool
}

func (f *fakeReader) City(ip net.IP) (*geoipdb.City, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.records[ip.String()]; ok {
		return rec, nil
	}
	return &geoipdb.City{}, nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func berlinRecord() *geoipdb.City {
	rec := &geoipdb.City{}
	rec.City.Names = map[string]string{"en": "Berlin", "de": "Berlin", "fr": "Berlin"}
	rec.Country.Names = map[string]string{"en": "Germany", "de": "Deutschland"}
	rec.Country.IsoCode = "DE"
	rec.Postal.Code = "10115"
	rec.Location.Latitude = 52.5244
	rec.Location.Longitude = 13.4105
	rec.Location.TimeZone = "Europe/Berlin"

	subs := reflect.ValueOf(&rec.Subdivisions).Elem()
	subs.Set(reflect.MakeSlice(subs.Type(), 1, 1))
	rec.Subdivisions[0].IsoCode = "BE"
	rec.Subdivisions[0].Names = map[string]string{"en": "Land Berlin"}
	return rec
}

func TestGeocode(t *testing.T) {
	r := &fakeReader{records: map[string]*geoipdb.City{"81.169.181.179": berlinRecord()}}
	p := newProvider(r, "")

	got, err := p.Geocode(context.Background(), domain.NewGeocodeQuery("81.169.181.179"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	loc := got[0]
	assert.Equal(t, &domain.Coordinates{Latitude: 52.5244, Longitude: 13.4105}, loc.Coordinates)
	assert.Equal(t, "Berlin", loc.Locality)
	assert.Equal(t, "Germany", loc.Country)
	assert.Equal(t, "DE", loc.CountryCode)
	assert.Equal(t, "10115", loc.PostalCode)
	assert.Equal(t, "Europe/Berlin", loc.Timezone)
	assert.Equal(t, []domain.AdminLevel{{Level: 1, Name: "Land Berlin", Code: "BE"}}, loc.AdminLevels)
	assert.Equal(t, "geoip2", loc.ProvidedBy)
}

func TestGeocode_Locale(t *testing.T) {
	r := &fakeReader{records: map[string]*geoipdb.City{"81.169.181.179": berlinRecord()}}

	got, err := newProvider(r, "de").Geocode(context.Background(), domain.NewGeocodeQuery("81.169.181.179"))
	require.NoError(t, err)
	assert.Equal(t, "Deutschland", got[0].Country)
	assert.Equal(t, "Land Berlin", got[0].AdminLevels[0].Name, "falls back to english")

	got, err = newProvider(r, "de").Geocode(context.Background(),
		domain.NewGeocodeQuery("81.169.181.179").WithLocale("en"))
	require.NoError(t, err)
	assert.Equal(t, "Germany", got[0].Country)
}

func TestGeocode_NotFound(t *testing.T) {
	p := newProvider(&fakeReader{}, "en")
	got, err := p.Geocode(context.Background(), domain.NewGeocodeQuery("10.0.0.1"))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestGeocode_WithoutLookup(t *testing.T) {
	r := &fakeReader{}
	p := newProvider(r, "en")

	_, err := p.Geocode(context.Background(), domain.NewGeocodeQuery("Unter den Linden, Berlin"))
	require.ErrorIs(t, err, domain.ErrUnsupportedOperation)

	got, err := p.Geocode(context.Background(), domain.NewGeocodeQuery("::1"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", got[0].Locality)

	assert.Equal(t, 0, r.lookups)
}

func TestGeocode_ReaderError(t *testing.T) {
	boom := errors.New("corrupt database")
	p := newProvider(&fakeReader{err: boom}, "en")
	_, err := p.Geocode(context.Background(), domain.NewGeocodeQuery("81.169.181.179"))
	require.ErrorIs(t, err, boom)
}

func TestClose(t *testing.T) {
	r := &fakeReader{}
	require.NoError(t, newProvider(r, "en").Close())
	assert.True(t, r.closed)
}

func TestOpen_MissingDatabase(t *testing.T) {
	_, err := Open(provider.GeoIP2Config{Database: filepath.Join(t.TempDir(), "missing.mmdb")})
	require.Error(t, err)
	assert.True(t, provider.Registered(provider.GeoIP2))
}
