package factory

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

// ErrUnknownFactory is returned for a factory name nothing registered.
var ErrUnknownFactory = errors.New("unknown provider factory")

// Registry maps factory names, as used in configuration files, to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a Registry holding the built-in factories. client is
// the injected default transport of HTTP providers; nil falls back to the
// process-wide client.
func NewRegistry(client provider.HTTPClient, logger *slog.Logger) *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("maxmind", NewMaxMind(client))
	r.Register("geoip2", NewGeoIP2())
	r.Register("mapbox", NewMapbox(client))
	r.Register("google_maps", NewGoogleMaps(client))
	r.Register("nominatim", NewNominatim(client))
	r.Register("chain", NewChain(logger))
	return r
}

// Register adds or replaces the factory called name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get returns the factory called name.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactory, name)
	}
	return f, nil
}

// Create runs the factory called name with opts.
func (r *Registry) Create(name string, opts map[string]any) (domain.Provider, error) {
	f, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return f.CreateProvider(opts)
}

// Names returns the registered factory names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
