package plugin

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
)

// Logging logs every query at debug level and failures at warn level.
func Logging(logger *slog.Logger) Plugin {
	return func(inner domain.Provider) domain.Provider {
		return &loggingProvider{wrapped: wrapped{inner: inner}, logger: logger}
	}
}

type loggingProvider struct {
	wrapped
	logger *slog.Logger
}

func (l *loggingProvider) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error) {
	start := time.Now()
	res, err := l.inner.Geocode(ctx, q)
	if err != nil {
		l.logger.WarnContext(ctx, "geocode failed",
			"provider", l.inner.Name(),
			"query", q.Text,
			"duration", time.Since(start),
			"error", err,
		)
		return nil, err
	}
	l.logger.DebugContext(ctx, "geocoded",
		"provider", l.inner.Name(),
		"query", q.Text,
		"results", len(res),
		"duration", time.Since(start),
	)
	return res, nil
}
