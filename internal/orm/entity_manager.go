// Package orm is a small unit-of-work layer: entities are registered with an
// EntityManager, their changes are diffed against snapshots at flush time,
// lifecycle listeners may adjust them, and a Persister writes the result in
// one transaction.
package orm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidEntity reports a value that cannot be mapped.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrEntityNotManaged reports an entity unknown to the unit of work.
	ErrEntityNotManaged = errors.New("entity is not managed")
)

// Writer performs the writes of one flush.
type Writer interface {
	Insert(ctx context.Context, meta *EntityMetadata, entity any) error
	Update(ctx context.Context, meta *EntityMetadata, entity any, cs ChangeSet) error
	Delete(ctx context.Context, meta *EntityMetadata, entity any) error
}

// Persister runs fn inside a transaction, committing when fn returns nil.
type Persister interface {
	Transaction(ctx context.Context, fn func(w Writer) error) error
}

// EntityManager is the entry point of one unit of work. It is not safe for
// concurrent use; create one per request or job.
type EntityManager struct {
	persister Persister
	events    *EventManager
	uow       *UnitOfWork
}

// NewEntityManager creates an EntityManager. A nil events uses an empty
// EventManager.
func NewEntityManager(p Persister, events *EventManager) *EntityManager {
	if events == nil {
		events = NewEventManager()
	}
	return &EntityManager{persister: p, events: events, uow: newUnitOfWork()}
}

// UnitOfWork exposes the tracked state.
func (em *EntityManager) UnitOfWork() *UnitOfWork { return em.uow }

// Events returns the event manager listeners are registered on.
func (em *EntityManager) Events() *EventManager { return em.events }

// Persist schedules a new entity for insertion on the next flush.
func (em *EntityManager) Persist(entity any) error {
	_, err := em.uow.register(entity, stateNew)
	return err
}

// Attach registers an entity loaded from storage. Its current state becomes
// the baseline for change detection.
func (em *EntityManager) Attach(entity any) error {
	_, err := em.uow.register(entity, stateManaged)
	return err
}

// Remove schedules a managed entity for deletion. A new entity is simply
// forgotten.
func (em *EntityManager) Remove(entity any) error {
	return em.uow.remove(entity)
}

// Flush computes change sets, dispatches OnFlush, writes everything in one
// transaction, and dispatches PostFlush. Any error aborts the flush before
// the commit and leaves entities in their previous state.
func (em *EntityManager) Flush(ctx context.Context) error {
	em.uow.computeChangeSets()

	args := &FlushEventArgs{em: em}
	if err := em.events.Dispatch(ctx, OnFlush, args); err != nil {
		return err
	}

	if em.uow.hasPendingWrites() {
		err := em.persister.Transaction(ctx, func(w Writer) error {
			return em.write(ctx, w)
		})
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		em.uow.commitSucceeded()
	}

	return em.events.Dispatch(ctx, PostFlush, args)
}

func (em *EntityManager) write(ctx context.Context, w Writer) error {
	for _, e := range em.uow.insertions {
		if err := w.Insert(ctx, e.meta, e.entity); err != nil {
			return fmt.Errorf("insert %s: %w", e.meta.Table, err)
		}
	}
	for _, e := range em.uow.updates {
		if err := w.Update(ctx, e.meta, e.entity, e.changeSet); err != nil {
			return fmt.Errorf("update %s: %w", e.meta.Table, err)
		}
	}
	for _, e := range em.uow.deletions {
		if err := w.Delete(ctx, e.meta, e.entity); err != nil {
			return fmt.Errorf("delete %s: %w", e.meta.Table, err)
		}
	}
	return nil
}
