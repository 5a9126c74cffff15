package plugin

import (
	"context"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

// Limit replaces the candidate limit of every query and truncates results
// from providers that ignore it.
func Limit(n int) Plugin {
	return func(inner domain.Provider) domain.Provider {
		return &limitedProvider{wrapped: wrapped{inner: inner}, limit: n}
	}
}

type limitedProvider struct {
	wrapped
	limit int
}

func (l *limitedProvider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	res, err := l.inner.Geocode(ctx, q.WithLimit(l.limit))
	if err != nil {
		return nil, err
	}
	if len(res) > l.limit {
		res = res[:l.limit]
	}
	return res, nil
}

// Locale sets the locale of queries that carry none.
func Locale(locale string) Plugin {
	return func(inner domain.Provider) domain.Provider {
		return &localeProvider{wrapped: wrapped{inner: inner}, locale: locale}
	}
}

type localeProvider struct {
	wrapped
	locale string
}

func (l *localeProvider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	if q.Locale == "" {
		q = q.WithLocale(l.locale)
	}
	return l.inner.Geocode(ctx, q)
}
