// Package chain implements a provider that asks a list of providers in order
// and returns the first non-empty result.
package chain

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

func init() {
	provider.Register(provider.Chain, provider.Constructor[provider.ChainConfig](
		func(cfg provider.ChainConfig) (domain.Provider, error) {
			return New(cfg), nil
		}))
}

// Provider falls through its children in order. A child error is logged and
// the next child is tried; when every child fails or finds nothing the
// result is empty. The chain does not own its children and never closes them.
type Provider struct {
	providers []domain.Provider
	logger    *slog.Logger
}

// New creates a chain over cfg.Providers.
func New(cfg provider.ChainConfig) *Provider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{providers: cfg.Providers, logger: logger}
}

func (p *Provider) Name() string { return "chain" }

// Geocode returns the first non-empty collection produced by a child.
func (p *Provider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	for _, child := range p.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := child.Geocode(ctx, q)
		if err != nil {
			p.logger.WarnContext(ctx, "chained provider failed",
				"provider", child.Name(),
				"query", q.Text,
				"error", err,
			)
			continue
		}
		if !res.IsEmpty() {
			return res, nil
		}
	}
	return domain.Collection{}, nil
}
