// Package listener geocodes entities while they are flushed. It hooks the
// OnFlush event of the unit of work, reads each geocodeable entity's address,
// asks a provider for coordinates, and writes the first result back before
// anything is committed.
package listener

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/mapping"
	"github.com/couchcryptid/geocoder-bundle/internal/observability"
	"github.com/couchcryptid/geocoder-bundle/internal/orm"
)

// Outcome labels for the listener metrics.
const (
	outcomeGeocoded  = "geocoded"
	outcomeNoAddress = "no_address"
	outcomeEmpty     = "empty"
	outcomeUnchanged = "unchanged"
	outcomeError     = "error"
)

// Listener geocodes geocodeable entities scheduled for insertion or update.
type Listener struct {
	provider domain.Provider
	driver   mapping.Driver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Listener querying provider for entities described by driver.
func New(provider domain.Provider, driver mapping.Driver, logger *slog.Logger, metrics *observability.Metrics) *Listener {
	return &Listener{
		provider: provider,
		driver:   driver,
		logger:   logger,
		metrics:  metrics,
	}
}

// SubscribedEvents implements orm.Subscriber.
func (l *Listener) SubscribedEvents() map[orm.Event]orm.Handler {
	return map[orm.Event]orm.Handler{
		orm.OnFlush: l.OnFlush,
	}
}

// OnFlush geocodes every geocodeable insertion, and every geocodeable update
// whose address may have changed, then recomputes its change set so the new
// coordinates are written by the same flush. Provider errors abort the flush.
func (l *Listener) OnFlush(ctx context.Context, args *orm.FlushEventArgs) error {
	uow := args.UnitOfWork()

	for _, entity := range uow.ScheduledEntityInsertions() {
		if !l.driver.IsGeocodeable(entity) {
			continue
		}
		meta, err := l.driver.LoadMetadataFromObject(entity)
		if err != nil {
			return err
		}
		if err := l.process(ctx, "insert", meta, entity); err != nil {
			return err
		}
		if err := uow.RecomputeSingleEntityChangeSet(entity); err != nil {
			return err
		}
	}

	for _, entity := range uow.ScheduledEntityUpdates() {
		if !l.driver.IsGeocodeable(entity) {
			continue
		}
		meta, err := l.driver.LoadMetadataFromObject(entity)
		if err != nil {
			return err
		}
		if !shouldGeocode(meta, uow, entity) {
			l.metrics.ListenerEntities.WithLabelValues("update", outcomeUnchanged).Inc()
			continue
		}
		if err := l.process(ctx, "update", meta, entity); err != nil {
			return err
		}
		if err := uow.RecomputeSingleEntityChangeSet(entity); err != nil {
			return err
		}
	}

	return nil
}

// Geocode geocodes entity regardless of its change set. It reports whether
// coordinates were written. Entities are not flushed; the caller does that.
func (l *Listener) Geocode(ctx context.Context, entity any) (bool, error) {
	meta, err := l.driver.LoadMetadataFromObject(entity)
	if err != nil {
		return false, err
	}
	outcome, err := l.geocodeEntity(ctx, meta, entity)
	l.metrics.ListenerEntities.WithLabelValues("backfill", outcome).Inc()
	return outcome == outcomeGeocoded, err
}

func (l *Listener) process(ctx context.Context, operation string, meta *mapping.Metadata, entity any) error {
	outcome, err := l.geocodeEntity(ctx, meta, entity)
	l.metrics.ListenerEntities.WithLabelValues(operation, outcome).Inc()
	l.logger.Debug("geocode on flush",
		"operation", operation,
		"entity", fmt.Sprintf("%T", entity),
		"outcome", outcome,
	)
	return err
}

// shouldGeocode re-geocodes getter-backed entities on every update because
// a derived address cannot be seen in the change set.
func shouldGeocode(meta *mapping.Metadata, uow *orm.UnitOfWork, entity any) bool {
	if meta.AddressGetter != nil {
		return true
	}
	return uow.EntityChangeSet(entity).Has(meta.AddressProperty.Name())
}

func (l *Listener) geocodeEntity(ctx context.Context, meta *mapping.Metadata, entity any) (string, error) {
	raw, err := meta.Address().Value(entity)
	if err != nil {
		return outcomeError, err
	}
	address, ok := addressString(raw)
	if !ok {
		return outcomeNoAddress, nil
	}

	results, err := l.provider.Geocode(ctx, domain.NewGeocodeQuery(address))
	if err != nil {
		return outcomeError, fmt.Errorf("geocode %T: %w", entity, err)
	}

	first, ok := results.First()
	if !ok || first.Coordinates == nil {
		return outcomeEmpty, nil
	}
	if err := meta.LatitudeProperty.SetFloat(entity, first.Coordinates.Latitude); err != nil {
		return outcomeError, err
	}
	if err := meta.LongitudeProperty.SetFloat(entity, first.Coordinates.Longitude); err != nil {
		return outcomeError, err
	}
	return outcomeGeocoded, nil
}

// addressString accepts strings and non-nil string pointers. "" and "0" are
// treated as no address.
func addressString(v any) (string, bool) {
	var s string
	switch a := v.(type) {
	case string:
		s = a
	case *string:
		if a == nil {
			return "", false
		}
		s = *a
	default:
		return "", false
	}
	if s == "" || s == "0" {
		return "", false
	}
	return s, true
}
