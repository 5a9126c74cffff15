// Package backfill geocodes stored places that have an address but no
// coordinates, one keyset-paged batch at a time.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geocoder-bundle/internal/observability"
	"github.com/couchcryptid/geocoder-bundle/internal/orm"
	"github.com/couchcryptid/geocoder-bundle/internal/places"
)

const (
	defaultBatchSize      = 50
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultMaxAttempts    = 5
)

// ErrRetriesExhausted is returned when one batch keeps failing to be read or
// written after MaxAttempts tries.
var ErrRetriesExhausted = errors.New("backfill retries exhausted")

// EntityGeocoder geocodes one entity regardless of its change set.
type EntityGeocoder interface {
	Geocode(ctx context.Context, entity any) (bool, error)
}

// EventPublisher announces places that received coordinates.
type EventPublisher interface {
	Publish(ctx context.Context, events ...places.GeocodedEvent)
}

// Options tunes a Runner. Zero values select the defaults.
type Options struct {
	BatchSize      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxAttempts bounds the consecutive failed tries of a single batch.
	MaxAttempts    int
}

// Stats summarizes a run.
type Stats struct {
	Batches  int
	Scanned  int
	Geocoded int
	Failed   int
}

// Runner walks the places missing coordinates in id order.
type Runner struct {
	repo      places.Repository
	persister orm.Persister
	geocoder  EntityGeocoder
	publisher EventPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
}

// New creates a Runner.
func New(
	repo places.Repository,
	persister orm.Persister,
	geocoder EntityGeocoder,
	publisher EventPublisher,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
	opts Options,
) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	return &Runner{
		repo:      repo,
		persister: persister,
		geocoder:  geocoder,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// Run processes batches until no place is left or ctx is cancelled. A place
// the provider cannot geocode is skipped; a failed read or write backs off
// and retries the same batch, giving up with ErrRetriesExhausted once the
// batch has failed MaxAttempts times in a row.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	r.logger.Info("backfill started", "batch_size", r.opts.BatchSize)
	r.metrics.BackfillRunning.Set(1)
	defer r.metrics.BackfillRunning.Set(0)

	var stats Stats
	var afterID int64
	backoff := r.opts.InitialBackoff
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info("backfill stopping", "reason", err)
			return stats, err
		}

		batch, err := r.repo.ListMissingCoordinates(ctx, afterID, r.opts.BatchSize)
		if err != nil {
			r.logger.Error("list places failed", "error", err, "after_id", afterID)
			if err := r.retry(ctx, afterID, &attempts, &backoff, err); err != nil {
				return stats, err
			}
			continue
		}
		if len(batch) == 0 {
			r.logger.Info("backfill finished",
				"batches", stats.Batches,
				"scanned", stats.Scanned,
				"geocoded", stats.Geocoded,
				"failed", stats.Failed,
			)
			return stats, nil
		}

		res, err := r.processBatch(ctx, batch)
		if err != nil {
			r.logger.Error("backfill batch failed", "error", err, "after_id", afterID, "batch_size", len(batch))
			if err := r.retry(ctx, afterID, &attempts, &backoff, err); err != nil {
				return stats, err
			}
			continue
		}
		backoff = r.opts.InitialBackoff
		attempts = 0

		stats.Batches++
		stats.Scanned += len(batch)
		stats.Geocoded += res.Geocoded
		stats.Failed += res.Failed
		afterID = batch[len(batch)-1].ID
	}
}

// processBatch geocodes batch and writes it in one flush.
func (r *Runner) processBatch(ctx context.Context, batch []*places.Place) (Stats, error) {
	start := r.clock.Now()
	r.metrics.BackfillBatchSize.Observe(float64(len(batch)))

	var res Stats
	em := orm.NewEntityManager(r.persister, nil)
	var geocoded []*places.Place
	for _, p := range batch {
		if err := em.Attach(p); err != nil {
			return res, err
		}
		ok, err := r.geocoder.Geocode(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			r.logger.Warn("geocode failed, skipping place", "id", p.ID, "address", p.Address, "error", err)
			r.metrics.BackfillErrors.Inc()
			res.Failed++
			continue
		}
		if ok {
			geocoded = append(geocoded, p)
		}
	}

	if err := em.Flush(ctx); err != nil {
		r.metrics.BackfillErrors.Inc()
		return res, err
	}
	res.Geocoded = len(geocoded)

	if r.publisher != nil && len(geocoded) > 0 {
		now := r.clock.Now().UTC()
		events := make([]places.GeocodedEvent, len(geocoded))
		for i, p := range geocoded {
			events[i] = places.NewGeocodedEvent(p, now)
		}
		r.publisher.Publish(ctx, events...)
	}

	r.metrics.BackfillBatchDuration.Observe(r.clock.Since(start).Seconds())
	return res, nil
}

// retry counts a failed attempt at the batch after afterID and backs off,
// or gives up when the attempt budget is spent.
func (r *Runner) retry(ctx context.Context, afterID int64, attempts *int, backoff *time.Duration, cause error) error {
	*attempts++
	if *attempts >= r.opts.MaxAttempts {
		r.logger.Error("backfill giving up", "after_id", afterID, "attempts", *attempts)
		return fmt.Errorf("%w: batch after id %d failed %d times: %w", ErrRetriesExhausted, afterID, *attempts, cause)
	}
	return r.backoff(ctx, backoff)
}

// backoff sleeps for the current delay and doubles it up to MaxBackoff.
func (r *Runner) backoff(ctx context.Context, current *time.Duration) error {
	timer := r.clock.NewTimer(*current)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
	}
	*current = nextBackoff(*current, r.opts.MaxBackoff)
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
