package plugin

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/observability"
)

// Profiling records the outcome and latency of every query.
func Profiling(metrics *observability.Metrics, clock clockwork.Clock) Plugin {
	return func(inner domain.Provider) domain.Provider {
		return &profiledProvider{wrapped: wrapped{inner: inner}, metrics: metrics, clock: clock}
	}
}

type profiledProvider struct {
	wrapped
	metrics *observability.Metrics
	clock   clockwork.Clock
}

func (p *profiledProvider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	name := p.inner.Name()
	start := p.clock.Now()
	res, err := p.inner.Geocode(ctx, q)
	p.metrics.GeocodeDuration.WithLabelValues(name).Observe(p.clock.Since(start).Seconds())

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case res.IsEmpty():
		outcome = "empty"
	}
	p.metrics.GeocodeRequests.WithLabelValues(name, outcome).Inc()
	return res, err
}
