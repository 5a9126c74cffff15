// Package provider holds what provider clients and their factories share:
// the capability registry provider packages add themselves to, dependency
// checks, HTTP client resolution, per-provider configuration, and the
// Aggregator that serves named providers.
package provider

import (
	"errors"
	"fmt"
	"sync"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

// Capability names a provider implementation a package can supply.
type Capability string

// Built-in capabilities.
const (
	MaxMind    Capability = "maxmind"
	GeoIP2     Capability = "geoip2"
	Mapbox     Capability = "mapbox"
	GoogleMaps Capability = "google_maps"
	Nominatim  Capability = "nominatim"
	Chain      Capability = "chain"
)

// ErrCapabilityMismatch reports a registered constructor of another shape
// than the one requested.
var ErrCapabilityMismatch = errors.New("capability registered with a different configuration type")

// Constructor builds a provider from its typed configuration.
type Constructor[C any] func(cfg C) (domain.Provider, error)

var (
	registryMu   sync.RWMutex
	constructors = make(map[Capability]any)
)

// Register makes a capability available. Provider packages call it from
// init, so a capability exists only when its package is linked into the
// binary. Registering the same capability twice panics.
func Register[C any](c Capability, ctor Constructor[C]) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if ctor == nil {
		panic("provider: Register constructor is nil")
	}
	if _, dup := constructors[c]; dup {
		panic(fmt.Sprintf("provider: Register called twice for %s", c))
	}
	constructors[c] = ctor
}

// Registered reports whether c has a constructor.
func Registered(c Capability) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := constructors[c]
	return ok
}

// Lookup returns the constructor of c.
func Lookup[C any](c Capability) (Constructor[C], error) {
	registryMu.RLock()
	raw, ok := constructors[c]
	registryMu.RUnlock()
	if !ok {
		return nil, &DependencyError{Capability: c}
	}
	ctor, ok := raw.(Constructor[C])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityMismatch, c)
	}
	return ctor, nil
}

// Dependency is a capability a factory needs together with the package that
// provides it.
type Dependency struct {
	Capability Capability
	Package    string
}

// DependencyError reports a capability whose package is not linked.
type DependencyError struct {
	Capability Capability
	Package    string
}

func (e *DependencyError) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("provider capability %q is not registered", e.Capability)
	}
	return fmt.Sprintf("provider capability %q is missing: import %q to use it", e.Capability, e.Package)
}

// CheckDependencies returns a *DependencyError for the first dependency
// without a registered capability.
func CheckDependencies(deps ...Dependency) error {
	for _, d := range deps {
		if !Registered(d.Capability) {
			return &DependencyError{Capability: d.Capability, Package: d.Package}
		}
	}
	return nil
}
