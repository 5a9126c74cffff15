package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/geocoder-bundle/internal/adapter/http"
	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/places"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type stubProvider struct {
	name    string
	results domain.Collection
	err     error
	queries []domain.GeocodeQuery
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Geocode(_ context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	s.queries = append(s.queries, q)
	return s.results, s.err
}

type stubPlaces struct {
	stored  map[int64]*places.Place
	created []places.NewPlace
	err     error
}

func (s *stubPlaces) Create(_ context.Context, in places.NewPlace) (*places.Place, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, in)
	return &places.Place{ID: int64(len(s.created)), Name: in.Name, Address: in.Address}, nil
}

func (s *stubPlaces) Update(_ context.Context, id int64, in places.PlaceUpdate) (*places.Place, error) {
	p, ok := s.stored[id]
	if !ok {
		return nil, places.ErrNotFound
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	return p, nil
}

func (s *stubPlaces) Get(_ context.Context, id int64) (*places.Place, error) {
	p, ok := s.stored[id]
	if !ok {
		return nil, places.ErrNotFound
	}
	return p, nil
}

var austin = domain.Collection{{
	Coordinates: &domain.Coordinates{Latitude: 30.2672, Longitude: -97.7431},
	Locality:    "Austin",
	CountryCode: "US",
	ProvidedBy:  "primary",
}}

type fixture struct {
	srv       *httpadapter.Server
	primary   *stubProvider
	secondary *stubProvider
	places    *stubPlaces
}

func newFixture(t *testing.T, readyErr error) *fixture {
	t.Helper()
	f := &fixture{
		primary:   &stubProvider{name: "primary", results: austin},
		secondary: &stubProvider{name: "secondary"},
		places:    &stubPlaces{stored: map[int64]*places.Place{}},
	}
	agg := provider.NewAggregator()
	require.NoError(t, agg.Register("primary", f.primary))
	require.NoError(t, agg.Register("secondary", f.secondary))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.srv = httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, agg, f.places, logger)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := newFixture(t, fmt.Errorf("database unreachable")).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestGeocode_DefaultProvider(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/geocode?q=Austin&limit=2&locale=en", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Results domain.Collection `json:"results"`
	}](t, rec)
	if diff := cmp.Diff(austin, body.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, f.primary.queries, 1)
	assert.Equal(t, domain.GeocodeQuery{Text: "Austin", Limit: 2, Locale: "en"}, f.primary.queries[0])
}

func TestGeocode_NamedProvider(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/geocode?q=Austin&provider=secondary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results": null}`, rec.Body.String())
	assert.Len(t, f.secondary.queries, 1)
	assert.Empty(t, f.primary.queries)
}

func TestGeocode_Errors(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		providerErr error
		want        int
	}{
		{"missing query", "/geocode", nil, http.StatusBadRequest},
		{"bad limit", "/geocode?q=Austin&limit=zero", nil, http.StatusBadRequest},
		{"unknown provider", "/geocode?q=Austin&provider=nope", nil, http.StatusNotFound},
		{"unsupported", "/geocode?q=Austin", domain.ErrUnsupportedOperation, http.StatusBadRequest},
		{"quota", "/geocode?q=Austin", domain.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"credentials", "/geocode?q=Austin", domain.ErrInvalidCredentials, http.StatusBadGateway},
		{"bad response", "/geocode?q=Austin", domain.ErrInvalidServerResponse, http.StatusBadGateway},
		{"unexpected", "/geocode?q=Austin", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.primary.err = tt.providerErr
			rec := f.do(http.MethodGet, tt.target, "")
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestCreatePlace(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/places", `{"name":"Capitol","address":"1100 Congress Ave, Austin"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	got := decode[places.Place](t, rec)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Capitol", got.Name)
	assert.Equal(t, []places.NewPlace{{Name: "Capitol", Address: "1100 Congress Ave, Austin"}}, f.places.created)
}

func TestCreatePlace_Invalid(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/places", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/places", `{"name":"x","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.places.err = fmt.Errorf("%w: name is required", places.ErrInvalidPlace)
	rec = f.do(http.MethodPost, "/places", `{"address":"somewhere"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "name is required")
}

func TestGetPlace(t *testing.T) {
	f := newFixture(t, nil)
	lat, lon := 30.2747, -97.7404
	f.places.stored[7] = &places.Place{
		ID: 7, Name: "Capitol", Address: "1100 Congress Ave",
		Latitude: &lat, Longitude: &lon,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	rec := f.do(http.MethodGet, "/places/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"id": 7,
		"name": "Capitol",
		"address": "1100 Congress Ave",
		"latitude": 30.2747,
		"longitude": -97.7404,
		"created_at": "2026-01-02T03:04:05Z",
		"updated_at": "2026-01-02T03:04:05Z"
	}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/places/8", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/places/abc", "").Code)
}

func TestUpdatePlace(t *testing.T) {
	f := newFixture(t, nil)
	f.places.stored[3] = &places.Place{ID: 3, Name: "Office", Address: "old"}

	rec := f.do(http.MethodPut, "/places/3", `{"address":"new"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[places.Place](t, rec)
	assert.Equal(t, "Office", got.Name)
	assert.Equal(t, "new", got.Address)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPut, "/places/4", `{"name":"x"}`).Code)
}
