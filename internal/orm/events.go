package orm

import (
	"context"
	"fmt"
	"sync"
)

// Event names a point in the flush lifecycle.
type Event string

const (
	// OnFlush fires after change sets are computed and before anything is
	// written. Listeners may mutate scheduled entities and must then call
	// UnitOfWork.RecomputeSingleEntityChangeSet.
	OnFlush Event = "onFlush"
	// PostFlush fires after a successful commit.
	PostFlush Event = "postFlush"
)

// FlushEventArgs is passed to flush listeners.
type FlushEventArgs struct {
	em *EntityManager
}

// EntityManager returns the entity manager being flushed.
func (a *FlushEventArgs) EntityManager() *EntityManager { return a.em }

// UnitOfWork returns the unit of work being flushed.
func (a *FlushEventArgs) UnitOfWork() *UnitOfWork { return a.em.uow }

// Handler reacts to a lifecycle event. A non-nil error aborts the flush.
type Handler func(ctx context.Context, args *FlushEventArgs) error

// Subscriber declares the events it handles.
type Subscriber interface {
	SubscribedEvents() map[Event]Handler
}

// EventManager holds lifecycle listeners. It is shared by entity managers and
// safe for concurrent use.
type EventManager struct {
	mu        sync.RWMutex
	listeners map[Event][]Handler
}

// NewEventManager creates an EventManager with no listeners.
func NewEventManager() *EventManager {
	return &EventManager{listeners: make(map[Event][]Handler)}
}

// AddListener appends h to the listeners of event. Listeners run in
// registration order.
func (m *EventManager) AddListener(event Event, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[event] = append(m.listeners[event], h)
}

// AddSubscriber registers every handler s declares.
func (m *EventManager) AddSubscriber(s Subscriber) {
	for event, h := range s.SubscribedEvents() {
		m.AddListener(event, h)
	}
}

// HasListeners reports whether anything listens to event.
func (m *EventManager) HasListeners(event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[event]) > 0
}

// Dispatch runs the listeners of event, stopping at the first error.
func (m *EventManager) Dispatch(ctx context.Context, event Event, args *FlushEventArgs) error {
	m.mu.RLock()
	handlers := append([]Handler(nil), m.listeners[event]...)
	m.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, args); err != nil {
			return fmt.Errorf("%s listener: %w", event, err)
		}
	}
	return nil
}
