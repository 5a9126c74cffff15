package mapbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

const austinJSON = `{
  "features": [{
    "center": [-97.7431, 30.2672],
    "place_name": "100 Congress Avenue, Austin, Texas 78701, United States",
    "text": "Congress Avenue",
    "address": "100",
    "place_type": ["address"],
    "context": [
      {"id": "neighborhood.1", "text": "Downtown"},
      {"id": "postcode.2", "text": "78701"},
      {"id": "place.3", "text": "Austin"},
      {"id": "district.4", "text": "Travis County"},
      {"id": "region.5", "text": "Texas", "short_code": "US-TX"},
      {"id": "country.6", "text": "United States", "short_code": "us"}
    ]
  }, {
    "center": [-97.7, 30.2],
    "place_name": "Austin, Texas, United States",
    "text": "Austin",
    "place_type": ["place"]
  }]
}`

func testProvider(baseURL string, cfg provider.MapboxConfig) *Provider {
	if cfg.AccessToken == "" {
		cfg.AccessToken = testToken
	}
	cfg.Client = &http.Client{Timeout: 5 * time.Second}
	p := New(cfg)
	p.baseURL = baseURL
	return p
}

func TestGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mapbox.places/100 Congress Ave, Austin.json", r.URL.Path)
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("country"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(austinJSON))
	}))
	defer srv.Close()

	got, err := testProvider(srv.URL, provider.MapboxConfig{}).
		Geocode(context.Background(), domain.NewGeocodeQuery("100 Congress Ave, Austin"))
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, &domain.Coordinates{Latitude: 30.2672, Longitude: -97.7431}, first.Coordinates)
	assert.Equal(t, "100", first.StreetNumber)
	assert.Equal(t, "Congress Avenue", first.StreetName)
	assert.Equal(t, "78701", first.PostalCode)
	assert.Equal(t, "Austin", first.Locality)
	assert.Equal(t, "Downtown", first.SubLocality)
	assert.Equal(t, "United States", first.Country)
	assert.Equal(t, "US", first.CountryCode)
	assert.Equal(t, []domain.AdminLevel{
		{Level: 2, Name: "Travis County"},
		{Level: 1, Name: "Texas", Code: "TX"},
	}, first.AdminLevels)
	assert.Equal(t, "mapbox", first.ProvidedBy)

	assert.Empty(t, got[1].StreetName, "only address features carry a street")
}

func TestGeocode_ModeCountryAndLocale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/mapbox.places-permanent/")
		assert.Equal(t, "de", r.URL.Query().Get("country"))
		assert.Equal(t, "fr", r.URL.Query().Get("language"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features": []}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL, provider.MapboxConfig{Country: "de", Mode: provider.MapboxPlacesPermanent})
	got, err := p.Geocode(context.Background(), domain.NewGeocodeQuery("Berlin").WithLimit(1).WithLocale("fr"))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestGeocode_APIErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrInvalidCredentials},
		{http.StatusTooManyRequests, domain.ErrQuotaExceeded},
		{http.StatusInternalServerError, domain.ErrInvalidServerResponse},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			_, err := testProvider(srv.URL, provider.MapboxConfig{}).
				Geocode(context.Background(), domain.NewGeocodeQuery("Austin"))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGeocode_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features": [`))
	}))
	defer srv.Close()

	_, err := testProvider(srv.URL, provider.MapboxConfig{}).
		Geocode(context.Background(), domain.NewGeocodeQuery("Austin"))
	require.ErrorIs(t, err, domain.ErrInvalidServerResponse)
}

func TestGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(provider.MapboxConfig{AccessToken: testToken, Client: &http.Client{Timeout: 50 * time.Millisecond}})
	p.baseURL = srv.URL

	_, err := p.Geocode(context.Background(), domain.NewGeocodeQuery("Austin"))
	require.Error(t, err)
}

func TestGeocode_BlankQuery(t *testing.T) {
	p := New(provider.MapboxConfig{AccessToken: testToken})
	got, err := p.Geocode(context.Background(), domain.NewGeocodeQuery("  "))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}
