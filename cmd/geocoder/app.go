package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	kafkaadapter "github.com/couchcryptid/geocoder-bundle/internal/adapter/kafka"
	"github.com/couchcryptid/geocoder-bundle/internal/adapter/postgres"
	"github.com/couchcryptid/geocoder-bundle/internal/bundle"
	"github.com/couchcryptid/geocoder-bundle/internal/config"
	"github.com/couchcryptid/geocoder-bundle/internal/listener"
	"github.com/couchcryptid/geocoder-bundle/internal/mapping"
	"github.com/couchcryptid/geocoder-bundle/internal/observability"
	"github.com/couchcryptid/geocoder-bundle/internal/orm"
	"github.com/couchcryptid/geocoder-bundle/internal/places"
	"github.com/couchcryptid/geocoder-bundle/internal/plugin"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
	"github.com/couchcryptid/geocoder-bundle/internal/provider/factory"
)

// app holds the process-wide collaborators shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	providers *provider.Aggregator
	closers   []func() error
}

// newApp loads configuration and builds every configured provider.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if providersFile != "" {
		cfg.ProvidersFile = providersFile
	}

	a := &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg),
		metrics: observability.NewMetrics(),
		clock:   clockwork.NewRealClock(),
	}

	providersCfg, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}

	var redisClient plugin.RedisClient
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, rc.Close)
		redisClient = rc
		a.logger.Info("redis cache enabled", "addr", cfg.RedisAddr)
	}

	factories := factory.NewRegistry(&http.Client{Timeout: cfg.HTTPTimeout}, a.logger)
	agg, err := bundle.Build(providersCfg, bundle.Deps{
		Factories: factories,
		Redis:     redisClient,
		Logger:    a.logger,
		Metrics:   a.metrics,
		Clock:     a.clock,
	})
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("build providers: %w", err)
	}
	a.providers = agg
	a.closers = append(a.closers, agg.Close)
	return a, nil
}

// store is the persistence the place service and backfill run on.
type store struct {
	persister orm.Persister
	repo      places.Repository
	ready     func(ctx context.Context) error
}

func (s *store) CheckReadiness(ctx context.Context) error { return s.ready(ctx) }

// openStore connects to PostgreSQL, or keeps places in memory when
// DATABASE_URL is unset.
func (a *app) openStore(ctx context.Context) (*store, error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Warn("DATABASE_URL not set, places are kept in memory")
		mem := orm.NewMemoryPersister()
		return &store{
			persister: mem,
			repo:      places.NewMemoryRepository(mem),
			ready:     func(context.Context) error { return nil },
		}, nil
	}

	db, err := postgres.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	persister := postgres.NewPersister(db)
	return &store{
		persister: persister,
		repo:      postgres.NewPlaceRepository(db),
		ready:     persister.CheckReadiness,
	}, nil
}

// publisher returns the Kafka writer when events are enabled, nil otherwise.
func (a *app) publisher() places.Publisher {
	if !a.cfg.EventsEnabled {
		a.logger.Info("geocoded event publishing disabled")
		return nil
	}
	w := kafkaadapter.NewWriter(a.cfg, a.logger)
	a.closers = append(a.closers, w.Close)
	a.logger.Info("geocoded event publishing enabled", "topic", a.cfg.KafkaTopic, "brokers", a.cfg.KafkaBrokers)
	return w
}

// listener creates the geocoding listener on the default provider.
func (a *app) listener() *listener.Listener {
	return listener.New(a.providers, mapping.NewTagDriver(), a.logger, a.metrics)
}

// placeService wires the listener into a fresh event manager and returns the
// place service writing through s.
func (a *app) placeService(s *store, pub places.Publisher) *places.Service {
	events := orm.NewEventManager()
	events.AddSubscriber(a.listener())
	return places.NewService(s.persister, s.repo, events, pub, a.clock, a.logger, a.metrics)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
