package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geocoder-bundle/internal/orm"
	"github.com/couchcryptid/geocoder-bundle/internal/places"
)

func placeMeta(t *testing.T) *orm.EntityMetadata {
	t.Helper()
	meta, err := orm.MetadataFor(&places.Place{})
	require.NoError(t, err)
	return meta
}

func TestInsertStatement_GeneratedID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lat := 30.2672
	p := &places.Place{Name: "Capitol", Address: "Austin", Latitude: &lat, CreatedAt: now, UpdatedAt: now}

	query, args, generated := insertStatement(placeMeta(t), p)
	assert.True(t, generated)
	assert.Equal(t,
		`INSERT INTO "places" ("name", "address", "latitude", "longitude", "created_at", "updated_at") VALUES ($1, $2, $3, $4, $5, $6) RETURNING "id"`,
		query)
	require.Len(t, args, 6)
	assert.Equal(t, "Capitol", args[0])
	assert.Equal(t, &lat, args[2])
	assert.Nil(t, args[3].(*float64))
}

func TestInsertStatement_ExplicitID(t *testing.T) {
	query, args, generated := insertStatement(placeMeta(t), &places.Place{ID: 7, Name: "x"})
	assert.False(t, generated)
	assert.Contains(t, query, `("id", "name",`)
	assert.NotContains(t, query, "RETURNING")
	assert.Equal(t, int64(7), args[0])
}

func TestUpdateStatement(t *testing.T) {
	lat, lon := 30.2672, -97.7431
	p := &places.Place{ID: 3, Name: "Capitol", Latitude: &lat, Longitude: &lon}
	cs := orm.ChangeSet{
		"Longitude": {Old: nil, New: lon},
		"Latitude":  {Old: nil, New: lat},
		"Unmapped":  {Old: 1, New: 2},
	}

	query, args := updateStatement(placeMeta(t), p, cs)
	assert.Equal(t, `UPDATE "places" SET "latitude" = $1, "longitude" = $2 WHERE "id" = $3`, query)
	assert.Equal(t, []any{&lat, &lon, int64(3)}, args)
}

func TestUpdateStatement_NothingMapped(t *testing.T) {
	query, args := updateStatement(placeMeta(t), &places.Place{ID: 1}, orm.ChangeSet{"Unmapped": {}})
	assert.Empty(t, query)
	assert.Nil(t, args)
}
