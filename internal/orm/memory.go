package orm

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryPersister keeps rows in memory keyed by table and integer id. It backs
// tests and embedded use where no database is configured.
type MemoryPersister struct {
	mu     sync.Mutex
	rows   map[string]map[int64]map[string]any
	nextID map[string]int64

	// FailWith, when set, makes the next transaction fail after fn ran.
	FailWith error
	// Commits counts successful transactions.
	Commits int
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		rows:   make(map[string]map[int64]map[string]any),
		nextID: make(map[string]int64),
	}
}

// Transaction runs fn against a working copy and publishes it on success.
func (p *MemoryPersister) Transaction(ctx context.Context, fn func(w Writer) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := &memoryWriter{rows: cloneRows(p.rows), nextID: maps.Clone(p.nextID)}
	if err := fn(w); err != nil {
		return err
	}
	if p.FailWith != nil {
		err := p.FailWith
		p.FailWith = nil
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.rows, p.nextID = w.rows, w.nextID
	p.Commits++
	return nil
}

// Row returns a copy of the stored columns of table/id.
func (p *MemoryPersister) Row(table string, id int64) (map[string]any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[table][id]
	return maps.Clone(row), ok
}

// Len returns the number of rows in table.
func (p *MemoryPersister) Len(table string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows[table])
}

// IDs returns the ids stored in table in ascending order.
func (p *MemoryPersister) IDs(table string) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := slices.Collect(maps.Keys(p.rows[table]))
	slices.Sort(ids)
	return ids
}

type memoryWriter struct {
	rows   map[string]map[int64]map[string]any
	nextID map[string]int64
}

func (w *memoryWriter) Insert(_ context.Context, meta *EntityMetadata, entity any) error {
	id, ok := meta.IDOf(entity)
	if !ok {
		return fmt.Errorf("%w: memory persister needs integer keys", ErrInvalidEntity)
	}
	if id == 0 {
		w.nextID[meta.Table]++
		id = w.nextID[meta.Table]
		if err := meta.SetID(entity, id); err != nil {
			return err
		}
	}
	if id > w.nextID[meta.Table] {
		w.nextID[meta.Table] = id
	}
	table := w.rows[meta.Table]
	if table == nil {
		table = make(map[int64]map[string]any)
		w.rows[meta.Table] = table
	}
	if _, exists := table[id]; exists {
		return fmt.Errorf("duplicate key %d in %s", id, meta.Table)
	}
	row := make(map[string]any, len(meta.Fields))
	snap := meta.snapshot(entity)
	for _, f := range meta.Fields {
		row[f.Column] = snap[f.Name]
	}
	table[id] = row
	return nil
}

func (w *memoryWriter) Update(_ context.Context, meta *EntityMetadata, entity any, cs ChangeSet) error {
	id, _ := meta.IDOf(entity)
	row, ok := w.rows[meta.Table][id]
	if !ok {
		return fmt.Errorf("no row %d in %s", id, meta.Table)
	}
	for name, change := range cs {
		f, ok := meta.Field(name)
		if !ok {
			continue
		}
		row[f.Column] = change.New
	}
	return nil
}

func (w *memoryWriter) Delete(_ context.Context, meta *EntityMetadata, entity any) error {
	id, _ := meta.IDOf(entity)
	delete(w.rows[meta.Table], id)
	return nil
}

func cloneRows(in map[string]map[int64]map[string]any) map[string]map[int64]map[string]any {
	out := make(map[string]map[int64]map[string]any, len(in))
	for table, rows := range in {
		t := make(map[int64]map[string]any, len(rows))
		for id, row := range rows {
			t[id] = maps.Clone(row)
		}
		out[table] = t
	}
	return out
}
