package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name     string
	closed   int
	closeErr error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Geocode(context.Context, domain.GeocodeQuery) (domain.Collection, error) {
	return domain.Collection{{ProvidedBy: s.name}}, nil
}

func (s *stubProvider) Close() error {
	s.closed++
	return s.closeErr
}

type testConfig struct{ Key string }

func TestRegisterAndLookup(t *testing.T) {
	const c Capability = "test_register_lookup"
	require.False(t, Registered(c))

	Register(c, Constructor[testConfig](func(cfg testConfig) (domain.Provider, error) {
		return &stubProvider{name: cfg.Key}, nil
	}))
	assert.True(t, Registered(c))

	ctor, err := Lookup[testConfig](c)
	require.NoError(t, err)
	p, err := ctor(testConfig{Key: "k"})
	require.NoError(t, err)
	assert.Equal(t, "k", p.Name())

	_, err = Lookup[MaxMindConfig](c)
	require.ErrorIs(t, err, ErrCapabilityMismatch)

	assert.Panics(t, func() {
		Register(c, Constructor[testConfig](func(testConfig) (domain.Provider, error) { return nil, nil }))
	})
}

func TestLookup_Unregistered(t *testing.T) {
	_, err := Lookup[testConfig]("test_never_registered")
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, Capability("test_never_registered"), depErr.Capability)
}

func TestCheckDependencies(t *testing.T) {
	const present Capability = "test_check_present"
	Register(present, Constructor[testConfig](func(testConfig) (domain.Provider, error) { return nil, nil }))

	require.NoError(t, CheckDependencies(Dependency{Capability: present, Package: "example.com/present"}))

	err := CheckDependencies(
		Dependency{Capability: present, Package: "example.com/present"},
		Dependency{Capability: "test_check_absent", Package: "example.com/geocoder/absent"},
	)
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "example.com/geocoder/absent", depErr.Package)
	assert.Contains(t, err.Error(), "example.com/geocoder/absent")
}

type namedClient struct{ name string }

func (c *namedClient) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New(c.name)
}

func TestResolveHTTPClient(t *testing.T) {
	explicit := &namedClient{name: "explicit"}
	injected := &namedClient{name: "injected"}

	assert.Same(t, explicit, ResolveHTTPClient(explicit, injected))
	assert.Same(t, injected, ResolveHTTPClient(nil, injected))

	shared := ResolveHTTPClient(nil, nil)
	require.NotNil(t, shared)
	assert.Same(t, shared, ResolveHTTPClient(nil, nil), "process-wide client is created once")
	assert.Equal(t, DefaultTimeout, shared.(*http.Client).Timeout)
}

func TestResolveHTTPClient_TypedNilIsAbsent(t *testing.T) {
	injected := &namedClient{name: "injected"}
	var nilClient *http.Client
	var nilNamed *namedClient

	assert.Same(t, injected, ResolveHTTPClient(nilClient, injected))
	assert.Same(t, injected, ResolveHTTPClient(nilNamed, injected))
	assert.Same(t, SharedHTTPClient(), ResolveHTTPClient(nilClient, nilNamed))
}

func TestAggregator(t *testing.T) {
	a := NewAggregator()
	_, err := a.Geocode(context.Background(), domain.NewGeocodeQuery("x"))
	require.ErrorIs(t, err, ErrProviderNotRegistered)

	first := &stubProvider{name: "first"}
	second := &stubProvider{name: "second"}
	require.NoError(t, a.Register("first", first))
	require.NoError(t, a.Register("second", second))
	require.Error(t, a.Register("first", first))

	assert.Equal(t, "first", a.DefaultName())
	assert.Equal(t, []string{"first", "second"}, a.Names())

	got, err := a.Geocode(context.Background(), domain.NewGeocodeQuery("x"))
	require.NoError(t, err)
	assert.Equal(t, "first", got[0].ProvidedBy)

	require.NoError(t, a.SetDefault("second"))
	got, err = a.Geocode(context.Background(), domain.NewGeocodeQuery("x"))
	require.NoError(t, err)
	assert.Equal(t, "second", got[0].ProvidedBy)

	require.ErrorIs(t, a.SetDefault("third"), ErrProviderNotRegistered)
	_, err = a.Using("third")
	require.ErrorIs(t, err, ErrProviderNotRegistered)

	p, err := a.Using("first")
	require.NoError(t, err)
	assert.Same(t, first, p)
}

func TestAggregator_Close(t *testing.T) {
	a := NewAggregator()
	ok := &stubProvider{name: "ok"}
	failing := &stubProvider{name: "failing", closeErr: errors.New("busy")}
	require.NoError(t, a.Register("ok", ok))
	require.NoError(t, a.Register("failing", failing))

	err := a.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failing: busy")
	assert.Equal(t, 1, ok.closed)
	assert.Equal(t, 1, failing.closed)
}
