// Package factory builds geocoding providers from option maps. Every factory
// checks that its provider package is linked, validates the options against
// its schema, and only then constructs the client, so configuration errors
// surface before any network activity.
package factory

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
	"github.com/couchcryptid/geocoder-bundle/internal/provider/options"
)

// ErrConfiguration wraps dependency and option validation failures.
var ErrConfiguration = errors.New("invalid provider configuration")

// Factory creates a provider from user options.
type Factory interface {
	CreateProvider(opts map[string]any) (domain.Provider, error)
}

// ConfigureFunc declares a factory's option schema.
type ConfigureFunc func(r *options.Resolver)

// BuildFunc constructs the provider from resolved options.
type BuildFunc func(opts options.Options) (domain.Provider, error)

type factory struct {
	name      string
	deps      []provider.Dependency
	configure ConfigureFunc
	build     BuildFunc
}

// New assembles a Factory from its dependencies, option schema, and
// constructor.
func New(name string, deps []provider.Dependency, configure ConfigureFunc, build BuildFunc) Factory {
	return &factory{name: name, deps: deps, configure: configure, build: build}
}

func (f *factory) CreateProvider(input map[string]any) (domain.Provider, error) {
	if err := provider.CheckDependencies(f.deps...); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, f.name, err)
	}

	r := options.NewResolver()
	if f.configure != nil {
		f.configure(r)
	}
	opts, err := r.Resolve(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, f.name, err)
	}

	p, err := f.build(opts)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", f.name, err)
	}
	return p, nil
}

// construct looks up the registered constructor for c and calls it.
func construct[C any](c provider.Capability, cfg C) (domain.Provider, error) {
	ctor, err := provider.Lookup[C](c)
	if err != nil {
		return nil, err
	}
	return ctor(cfg)
}
