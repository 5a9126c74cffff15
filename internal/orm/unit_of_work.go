package orm

import (
	"fmt"
	"reflect"
	"sort"
)

// Change is the before/after value of one field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ChangeSet maps Go field names to their changes within one flush.
type ChangeSet map[string]Change

// Has reports whether field changed.
func (cs ChangeSet) Has(field string) bool {
	_, ok := cs[field]
	return ok
}

// Fields returns the changed field names in sorted order.
func (cs ChangeSet) Fields() []string {
	out := make([]string, 0, len(cs))
	for name := range cs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type entityState int

const (
	stateNew entityState = iota
	stateManaged
	stateRemoved
)

type entry struct {
	entity    any
	meta      *EntityMetadata
	state     entityState
	original  map[string]any
	changeSet ChangeSet
}

// UnitOfWork tracks the entities of one EntityManager and what each flush
// must write for them.
type UnitOfWork struct {
	entries map[any]*entry
	order   []*entry

	insertions []*entry
	updates    []*entry
	deletions  []*entry
}

func newUnitOfWork() *UnitOfWork {
	return &UnitOfWork{entries: make(map[any]*entry)}
}

func (u *UnitOfWork) register(entity any, state entityState) (*entry, error) {
	meta, err := MetadataFor(entity)
	if err != nil {
		return nil, err
	}
	if e, ok := u.entries[entity]; ok {
		if e.state == stateRemoved {
			e.state = stateManaged
		}
		return e, nil
	}
	e := &entry{entity: entity, meta: meta, state: state}
	if state == stateManaged {
		e.original = meta.snapshot(entity)
	}
	u.entries[entity] = e
	u.order = append(u.order, e)
	return e, nil
}

// lookup finds the entry of entity. Only pointers are ever registered, which
// also keeps non-comparable values away from the map.
func (u *UnitOfWork) lookup(entity any) (*entry, bool) {
	if reflect.ValueOf(entity).Kind() != reflect.Pointer {
		return nil, false
	}
	e, ok := u.entries[entity]
	return e, ok
}

func (u *UnitOfWork) remove(entity any) error {
	e, ok := u.lookup(entity)
	if !ok {
		return fmt.Errorf("%w: %T", ErrEntityNotManaged, entity)
	}
	if e.state == stateNew {
		u.detach(e)
		return nil
	}
	e.state = stateRemoved
	return nil
}

func (u *UnitOfWork) detach(e *entry) {
	delete(u.entries, e.entity)
	for i, o := range u.order {
		if o == e {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
}

func (u *UnitOfWork) computeChangeSets() {
	u.insertions, u.updates, u.deletions = nil, nil, nil
	for _, e := range u.order {
		switch e.state {
		case stateNew:
			e.changeSet = diff(nil, e.meta.snapshot(e.entity))
			u.insertions = append(u.insertions, e)
		case stateManaged:
			e.changeSet = diff(e.original, e.meta.snapshot(e.entity))
			if len(e.changeSet) > 0 {
				u.updates = append(u.updates, e)
			}
		case stateRemoved:
			e.changeSet = nil
			u.deletions = append(u.deletions, e)
		}
	}
}

// ScheduledEntityInsertions returns the entities the current flush inserts.
func (u *UnitOfWork) ScheduledEntityInsertions() []any { return entities(u.insertions) }

// ScheduledEntityUpdates returns the entities the current flush updates.
func (u *UnitOfWork) ScheduledEntityUpdates() []any { return entities(u.updates) }

// ScheduledEntityDeletions returns the entities the current flush deletes.
func (u *UnitOfWork) ScheduledEntityDeletions() []any { return entities(u.deletions) }

// EntityChangeSet returns the computed change set of entity, or nil.
func (u *UnitOfWork) EntityChangeSet(entity any) ChangeSet {
	if e, ok := u.lookup(entity); ok {
		return e.changeSet
	}
	return nil
}

// RecomputeSingleEntityChangeSet recomputes entity's change set after a
// listener mutated it during OnFlush. A managed entity that had no changes
// becomes a scheduled update when the recomputation finds some.
func (u *UnitOfWork) RecomputeSingleEntityChangeSet(entity any) error {
	e, ok := u.lookup(entity)
	if !ok {
		return fmt.Errorf("%w: %T", ErrEntityNotManaged, entity)
	}
	switch e.state {
	case stateNew:
		e.changeSet = diff(nil, e.meta.snapshot(entity))
	case stateManaged:
		had := len(e.changeSet) > 0
		e.changeSet = diff(e.original, e.meta.snapshot(entity))
		if !had && len(e.changeSet) > 0 {
			u.updates = append(u.updates, e)
		}
	default:
		return fmt.Errorf("%w: %T is scheduled for deletion", ErrEntityNotManaged, entity)
	}
	return nil
}

func (u *UnitOfWork) hasPendingWrites() bool {
	return len(u.insertions)+len(u.updates)+len(u.deletions) > 0
}

// commitSucceeded moves written entities to the managed state with fresh
// snapshots and forgets deleted ones.
func (u *UnitOfWork) commitSucceeded() {
	for _, group := range [][]*entry{u.insertions, u.updates} {
		for _, e := range group {
			e.state = stateManaged
			e.original = e.meta.snapshot(e.entity)
			e.changeSet = nil
		}
	}
	for _, e := range u.deletions {
		u.detach(e)
	}
	u.insertions, u.updates, u.deletions = nil, nil, nil
}

func diff(before, after map[string]any) ChangeSet {
	cs := ChangeSet{}
	for name, now := range after {
		var was any
		if before != nil {
			was = before[name]
		}
		if before != nil && reflect.DeepEqual(was, now) {
			continue
		}
		cs[name] = Change{Old: was, New: now}
	}
	return cs
}

func entities(es []*entry) []any {
	out := make([]any, len(es))
	for i, e := range es {
		out[i] = e.entity
	}
	return out
}
