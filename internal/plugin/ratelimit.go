package plugin

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

// RateLimit holds queries to rps per second with bursts of burst. Callers
// block until a token is free or ctx is done.
func RateLimit(rps float64, burst int) Plugin {
	if burst <= 0 {
		burst = 1
	}
	return func(inner domain.Provider) domain.Provider {
		return &rateLimitedProvider{
			wrapped: wrapped{inner: inner},
			limiter: rate.NewLimiter(rate.Limit(rps), burst),
		}
	}
}

type rateLimitedProvider struct {
	wrapped
	limiter *rate.Limiter
}

func (r *rateLimitedProvider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", r.inner.Name(), err)
	}
	return r.inner.Geocode(ctx, q)
}
