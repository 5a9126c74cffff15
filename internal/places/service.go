package places

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geocoder-bundle/internal/observability"
	"github.com/couchcryptid/geocoder-bundle/internal/orm"
)

// NewPlace is the input of Create.
type NewPlace struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// PlaceUpdate is the input of Update. Nil fields are left unchanged.
type PlaceUpdate struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
}

// Service creates, updates, and reads places. Each write runs its own
// EntityManager over the shared persister and event manager, so the service
// is safe for concurrent use.
type Service struct {
	persister orm.Persister
	repo      Repository
	events    *orm.EventManager
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService creates a Service. A nil publisher disables event publishing.
func NewService(
	persister orm.Persister,
	repo Repository,
	events *orm.EventManager,
	publisher Publisher,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		persister: persister,
		repo:      repo,
		events:    events,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Create stores a new place. Its address is geocoded during the flush.
func (s *Service) Create(ctx context.Context, in NewPlace) (*Place, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPlace)
	}
	now := s.clock.Now().UTC()
	p := &Place{Name: in.Name, Address: in.Address, CreatedAt: now, UpdatedAt: now}

	em := orm.NewEntityManager(s.persister, s.events)
	if err := em.Persist(p); err != nil {
		return nil, err
	}
	if err := em.Flush(ctx); err != nil {
		return nil, fmt.Errorf("create place: %w", err)
	}

	if p.Geocoded() {
		s.publish(ctx, NewGeocodedEvent(p, now))
	}
	return p, nil
}

// Update changes a stored place. A changed address is geocoded again.
func (s *Service) Update(ctx context.Context, id int64, in PlaceUpdate) (*Place, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidPlace)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	em := orm.NewEntityManager(s.persister, s.events)
	if err := em.Attach(p); err != nil {
		return nil, err
	}
	before := coordinates(p)

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	now := s.clock.Now().UTC()
	p.UpdatedAt = now

	if err := em.Flush(ctx); err != nil {
		return nil, fmt.Errorf("update place %d: %w", id, err)
	}

	if p.Geocoded() && coordinates(p) != before {
		s.publish(ctx, NewGeocodedEvent(p, now))
	}
	return p, nil
}

// Get returns a stored place.
func (s *Service) Get(ctx context.Context, id int64) (*Place, error) {
	return s.repo.Get(ctx, id)
}

// publish delivers events after a committed flush. Failures are logged and
// counted; the write already succeeded.
func (s *Service) publish(ctx context.Context, events ...GeocodedEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.ErrorContext(ctx, "publish geocoded events", "count", len(events), "error", err)
		return
	}
	s.metrics.EventsPublished.Add(float64(len(events)))
}

// Publish delivers events on behalf of batch jobs.
func (s *Service) Publish(ctx context.Context, events ...GeocodedEvent) {
	s.publish(ctx, events...)
}

type latLng struct {
	lat, lng float64
	set      bool
}

func coordinates(p *Place) latLng {
	if !p.Geocoded() {
		return latLng{}
	}
	return latLng{lat: *p.Latitude, lng: *p.Longitude, set: true}
}
