package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

// ErrProviderNotRegistered is returned for an unknown provider name.
var ErrProviderNotRegistered = errors.New("provider not registered")

// Aggregator serves several named providers and geocodes with a default one.
type Aggregator struct {
	mu        sync.RWMutex
	providers map[string]domain.Provider
	def       string
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{providers: make(map[string]domain.Provider)}
}

// Register adds p under name. The first registered provider becomes the
// default until SetDefault is called.
func (a *Aggregator) Register(name string, p domain.Provider) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.providers[name]; dup {
		return fmt.Errorf("provider %q already registered", name)
	}
	a.providers[name] = p
	if a.def == "" {
		a.def = name
	}
	return nil
}

// SetDefault selects the provider used by Geocode.
func (a *Aggregator) SetDefault(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.providers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotRegistered, name)
	}
	a.def = name
	return nil
}

// Using returns the provider registered under name.
func (a *Aggregator) Using(name string) (domain.Provider, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, name)
	}
	return p, nil
}

// DefaultName returns the name of the default provider.
func (a *Aggregator) DefaultName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.def
}

// Names returns the registered names in sorted order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sortedNames()
}

func (a *Aggregator) sortedNames() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (a *Aggregator) Name() string { return "aggregator" }

// Geocode queries the default provider.
func (a *Aggregator) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	a.mu.RLock()
	p, ok := a.providers[a.def]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no default provider", ErrProviderNotRegistered)
	}
	return p.Geocode(ctx, q)
}

// Close releases providers holding resources, such as open databases.
func (a *Aggregator) Close() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var errs []error
	for _, name := range a.sortedNames() {
		if c, ok := a.providers[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
