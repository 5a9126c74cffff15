// Package bundle turns the provider configuration file into a ready
// provider.Aggregator: every named provider is built by its factory, wrapped
// in the plugins its definition enables, and registered under its name.
package bundle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geocoder-bundle/internal/config"
	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/observability"
	"github.com/couchcryptid/geocoder-bundle/internal/plugin"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
	"github.com/couchcryptid/geocoder-bundle/internal/provider/factory"
	"github.com/couchcryptid/geocoder-bundle/internal/provider/options"
)

// DefaultCacheSize is the memory cache capacity when a definition sets none.
const DefaultCacheSize = 1000

const chainFactory = "chain"

var (
	// ErrCycle reports chain providers that reference each other.
	ErrCycle = errors.New("provider reference cycle")
	// ErrUnknownReference reports a chain entry naming no configured provider.
	ErrUnknownReference = errors.New("unknown provider reference")
)

// Deps are the collaborators providers and plugins are built with.
type Deps struct {
	Factories *factory.Registry
	Redis     plugin.RedisClient // required by definitions using the redis cache
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Clock     clockwork.Clock
}

type builder struct {
	cfg      *config.ProvidersConfig
	deps     Deps
	agg      *provider.Aggregator
	visiting map[string]bool
}

// Build creates an Aggregator holding every provider of cfg. On failure the
// providers built so far are closed.
func Build(cfg *config.ProvidersConfig, deps Deps) (*provider.Aggregator, error) {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	b := &builder{
		cfg:      cfg,
		deps:     deps,
		agg:      provider.NewAggregator(),
		visiting: make(map[string]bool),
	}

	for _, name := range cfg.Names() {
		if _, err := b.build(name); err != nil {
			_ = b.agg.Close()
			return nil, err
		}
	}
	if cfg.Default != "" {
		if err := b.agg.SetDefault(cfg.Default); err != nil {
			_ = b.agg.Close()
			return nil, err
		}
	}

	deps.Logger.Info("geocoding providers ready",
		"providers", b.agg.Names(),
		"default", b.agg.DefaultName(),
	)
	return b.agg, nil
}

// build returns the wrapped provider called name, building it and the
// providers it references on first use.
func (b *builder) build(name string) (domain.Provider, error) {
	if p, err := b.agg.Using(name); err == nil {
		return p, nil
	}
	def, ok := b.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReference, name)
	}
	if b.visiting[name] {
		return nil, fmt.Errorf("%w: %q", ErrCycle, name)
	}
	b.visiting[name] = true
	defer delete(b.visiting, name)

	opts := maps.Clone(def.Options)
	if opts == nil {
		opts = make(map[string]any)
	}
	if def.Factory == chainFactory {
		children, err := b.references(name, opts["providers"])
		if err != nil {
			return nil, err
		}
		opts["providers"] = children
	}

	p, err := b.deps.Factories.Create(def.Factory, opts)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", name, err)
	}

	plugins, err := b.plugins(name, def)
	if err != nil {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	p = plugin.Apply(p, plugins...)
	if err := b.agg.Register(name, p); err != nil {
		return nil, err
	}
	return p, nil
}

// references resolves the provider names listed by a chain definition.
func (b *builder) references(name string, raw any) ([]domain.Provider, error) {
	if raw == nil {
		return nil, nil
	}
	if !options.StringSlice.Accepts(raw) {
		return nil, fmt.Errorf("provider %q: providers must be a list of provider names", name)
	}
	refs := options.Strings(raw)
	children := make([]domain.Provider, 0, len(refs))
	for _, ref := range refs {
		child, err := b.build(ref)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		children = append(children, child)
	}
	return children, nil
}

// plugins lists the decorators def enables, outermost first. Cache hits
// skip the rate limiter; profiling and logging see every query.
func (b *builder) plugins(name string, def config.ProviderDefinition) ([]plugin.Plugin, error) {
	var out []plugin.Plugin
	if def.Profiling {
		out = append(out, plugin.Profiling(b.deps.Metrics, b.deps.Clock))
	}
	if def.Logging {
		out = append(out, plugin.Logging(b.deps.Logger.With("provider_name", name)))
	}
	if def.Limit > 0 {
		out = append(out, plugin.Limit(def.Limit))
	}
	if def.Locale != "" {
		out = append(out, plugin.Locale(def.Locale))
	}
	switch def.Cache {
	case config.CacheMemory:
		size := def.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		out = append(out, plugin.Cache(size, def.CacheLifetime, b.deps.Clock, b.deps.Metrics))
	case config.CacheRedis:
		if b.deps.Redis == nil {
			return nil, fmt.Errorf("provider %q: redis cache requested but REDIS_ADDR is not set", name)
		}
		out = append(out, plugin.RedisCache(b.deps.Redis, def.CacheLifetime, b.deps.Logger, b.deps.Metrics))
	}
	if def.RateLimit != nil {
		out = append(out, plugin.RateLimit(def.RateLimit.RPS, def.RateLimit.Burst))
	}
	return out, nil
}
