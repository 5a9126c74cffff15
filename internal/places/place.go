// Package places manages geocodeable places. Writes run through a unit of
// work so the geocoding listener fills coordinates at flush time, and
// geocoded places are announced to downstream consumers.
package places

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/geocoder-bundle/internal/mapping"
)

// Table is the table places are stored in.
const Table = "places"

var (
	// ErrNotFound is returned for an unknown place id.
	ErrNotFound = errors.New("place not found")
	// ErrInvalidPlace reports input that cannot be stored.
	ErrInvalidPlace = errors.New("invalid place")
)

// Place is a named address with optional coordinates.
type Place struct {
	mapping.Geocodeable

	ID        int64     `db:"id,pk" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" geocode:"address" json:"address"`
	Latitude  *float64  `db:"latitude" geocode:"latitude" json:"latitude"`
	Longitude *float64  `db:"longitude" geocode:"longitude" json:"longitude"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (*Place) TableName() string { return Table }

// Geocoded reports whether both coordinates are set.
func (p *Place) Geocoded() bool { return p.Latitude != nil && p.Longitude != nil }

// GeocodedEvent announces coordinates set on a stored entity.
type GeocodedEvent struct {
	EntityType string    `json:"entity_type"`
	ID         int64     `json:"id"`
	Address    string    `json:"address"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	GeocodedAt time.Time `json:"geocoded_at"`
}

// NewGeocodedEvent describes the coordinates of p. p must be geocoded.
func NewGeocodedEvent(p *Place, at time.Time) GeocodedEvent {
	return GeocodedEvent{
		EntityType: "place",
		ID:         p.ID,
		Address:    p.Address,
		Latitude:   *p.Latitude,
		Longitude:  *p.Longitude,
		GeocodedAt: at,
	}
}

// Repository reads stored places.
type Repository interface {
	Get(ctx context.Context, id int64) (*Place, error)
	// ListMissingCoordinates returns up to limit places with an address but
	// no coordinates and an id above afterID, in id order.
	ListMissingCoordinates(ctx context.Context, afterID int64, limit int) ([]*Place, error)
}

// Publisher delivers geocoded events.
type Publisher interface {
	Publish(ctx context.Context, events ...GeocodedEvent) error
}
