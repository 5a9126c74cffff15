//go:build integration

package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geocoder-bundle/internal/adapter/postgres"
	"github.com/couchcryptid/geocoder-bundle/internal/backfill"
	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/listener"
	"github.com/couchcryptid/geocoder-bundle/internal/mapping"
	"github.com/couchcryptid/geocoder-bundle/internal/observability"
	"github.com/couchcryptid/geocoder-bundle/internal/orm"
	"github.com/couchcryptid/geocoder-bundle/internal/places"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []places.GeocodedEvent
}

func (r *recordingPublisher) Publish(_ context.Context, events ...places.GeocodedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

var addressBook = map[string]domain.Coordinates{
	"1100 Congress Ave, Austin": {Latitude: 30.2747, Longitude: -97.7404},
	"500 E Cesar Chavez St":     {Latitude: 30.2638, Longitude: -97.7397},
}

// TestPlacesGeocodeOnFlush writes places through the unit of work into
// PostgreSQL and checks the listener filled the stored coordinates.
func TestPlacesGeocodeOnFlush(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := startPostgres(ctx, t)
	metrics := observability.NewMetricsForTesting()
	events := orm.NewEventManager()
	events.AddSubscriber(listener.New(&staticProvider{book: addressBook}, mapping.NewTagDriver(), discardLogger(), metrics))

	persister := postgres.NewPersister(db)
	repo := postgres.NewPlaceRepository(db)
	publisher := &recordingPublisher{}
	svc := places.NewService(persister, repo, events, publisher, clockwork.NewRealClock(), discardLogger(), metrics)

	created, err := svc.Create(ctx, places.NewPlace{Name: "Capitol", Address: "1100 Congress Ave, Austin"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, stored.Geocoded())
	assert.InDelta(t, 30.2747, *stored.Latitude, 1e-9)
	assert.InDelta(t, -97.7404, *stored.Longitude, 1e-9)
	assert.WithinDuration(t, created.CreatedAt, stored.CreatedAt, time.Millisecond)

	updated, err := svc.Update(ctx, created.ID, places.PlaceUpdate{Address: ptr("500 E Cesar Chavez St")})
	require.NoError(t, err)
	assert.InDelta(t, 30.2638, *updated.Latitude, 1e-9)

	stored, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "500 E Cesar Chavez St", stored.Address)
	assert.InDelta(t, -97.7397, *stored.Longitude, 1e-9)

	require.Len(t, publisher.events, 2)
	assert.Equal(t, created.ID, publisher.events[1].ID)

	_, err = repo.Get(ctx, created.ID+100)
	require.ErrorIs(t, err, places.ErrNotFound)
	require.NoError(t, persister.CheckReadiness(ctx))
}

// TestBackfillFillsMissingCoordinates stores places without a listener, then
// lets the backfill runner geocode them in batches.
func TestBackfillFillsMissingCoordinates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := startPostgres(ctx, t)
	persister := postgres.NewPersister(db)
	repo := postgres.NewPlaceRepository(db)

	now := time.Now().UTC()
	em := orm.NewEntityManager(persister, nil)
	for _, p := range []*places.Place{
		{Name: "Capitol", Address: "1100 Congress Ave, Austin"},
		{Name: "Unknown", Address: "nowhere in particular"},
		{Name: "Convention Center", Address: "500 E Cesar Chavez St"},
	} {
		p.CreatedAt, p.UpdatedAt = now, now
		require.NoError(t, em.Persist(p))
	}
	require.NoError(t, em.Flush(ctx))

	metrics := observability.NewMetricsForTesting()
	geocoder := listener.New(&staticProvider{book: addressBook}, mapping.NewTagDriver(), discardLogger(), metrics)
	publisher := &recordingPublisher{}
	svc := places.NewService(persister, repo, nil, publisher, clockwork.NewRealClock(), discardLogger(), metrics)

	runner := backfill.New(repo, persister, geocoder, svc, clockwork.NewRealClock(), discardLogger(), metrics,
		backfill.Options{BatchSize: 2})
	stats, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 2, stats.Geocoded)
	assert.Len(t, publisher.events, 2)

	remaining, err := repo.ListMissingCoordinates(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Unknown", remaining[0].Name)
}

func ptr[T any](v T) *T { return &v }
