package places

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/geocoder-bundle/internal/orm"
)

// MemoryRepository reads places stored by an orm.MemoryPersister.
type MemoryRepository struct {
	store *orm.MemoryPersister
}

// NewMemoryRepository creates a repository over store.
func NewMemoryRepository(store *orm.MemoryPersister) *MemoryRepository {
	return &MemoryRepository{store: store}
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (*Place, error) {
	row, ok := r.store.Row(Table, id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return placeFromRow(id, row), nil
}

func (r *MemoryRepository) ListMissingCoordinates(_ context.Context, afterID int64, limit int) ([]*Place, error) {
	var out []*Place
	for _, id := range r.store.IDs(Table) {
		if id <= afterID {
			continue
		}
		row, ok := r.store.Row(Table, id)
		if !ok {
			continue
		}
		p := placeFromRow(id, row)
		if p.Address == "" || p.Geocoded() {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func placeFromRow(id int64, row map[string]any) *Place {
	p := &Place{ID: id}
	p.Name, _ = row["name"].(string)
	p.Address, _ = row["address"].(string)
	if v, ok := row["latitude"].(float64); ok {
		p.Latitude = &v
	}
	if v, ok := row["longitude"].(float64); ok {
		p.Longitude = &v
	}
	p.CreatedAt, _ = row["created_at"].(time.Time)
	p.UpdatedAt, _ = row["updated_at"].(time.Time)
	return p
}
