package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/geocoder-bundle/internal/places"
)

const placeColumns = "id, name, address, latitude, longitude, created_at, updated_at"

// PlaceRepository reads places.
type PlaceRepository struct {
	db *sql.DB
}

// NewPlaceRepository creates a PlaceRepository on db.
func NewPlaceRepository(db *sql.DB) *PlaceRepository {
	return &PlaceRepository{db: db}
}

func (r *PlaceRepository) Get(ctx context.Context, id int64) (*places.Place, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+placeColumns+" FROM places WHERE id = $1", id)
	p, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", places.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get place %d: %w", id, err)
	}
	return p, nil
}

func (r *PlaceRepository) ListMissingCoordinates(ctx context.Context, afterID int64, limit int) ([]*places.Place, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+placeColumns+` FROM places
		WHERE id > $1 AND address <> '' AND (latitude IS NULL OR longitude IS NULL)
		ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()

	var out []*places.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlace(s scanner) (*places.Place, error) {
	var p places.Place
	var lat, lon sql.NullFloat64
	if err := s.Scan(&p.ID, &p.Name, &p.Address, &lat, &lon, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	return &p, nil
}
