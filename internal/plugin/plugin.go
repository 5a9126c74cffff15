// Package plugin decorates geocoding providers with caching, rate limiting,
// query defaults, logging, and profiling.
package plugin

import (
	"fmt"
	"io"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

// Plugin wraps a provider in another provider.
type Plugin func(domain.Provider) domain.Provider

// Apply wraps p with plugins. The first plugin ends up outermost and sees
// each query first.
func Apply(p domain.Provider, plugins ...Plugin) domain.Provider {
	for i := len(plugins) - 1; i >= 0; i-- {
		p = plugins[i](p)
	}
	return p
}

// wrapped is embedded by every decorator. It keeps the inner provider's name
// and forwards Close so resources such as database readers are released
// through the decorator chain.
type wrapped struct {
	inner domain.Provider
}

func (w wrapped) Name() string { return w.inner.Name() }

func (w wrapped) Close() error {
	if c, ok := w.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// cacheKey identifies a query for one provider.
func cacheKey(provider string, q domain.GeocodeQuery) string {
	return fmt.Sprintf("%s|%s|%d|%s", provider, q.Text, q.Limit, q.Locale)
}
