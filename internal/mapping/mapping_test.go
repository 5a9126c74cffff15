package mapping

import (
	"database/sql"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedPlace struct {
	Geocodeable
	Name      string
	Address   string   `geocode:"address"`
	Latitude  float64  `geocode:"latitude"`
	Longitude *float64 `geocode:"longitude"`
}

type office struct {
	Geocodeable `geocode:"getter=FullAddress"`
	Street      string
	City        string
	Lat         sql.NullFloat64 `geocode:"latitude"`
	Lng         sql.NullFloat64 `geocode:"longitude"`
}

func (o *office) FullAddress() string { return fmt.Sprintf("%s, %s", o.Street, o.City) }

type untagged struct {
	Addr     string
	Lat, Lng float64
}

type Position struct {
	Lat float64 `geocode:"latitude"`
	Lng float64 `geocode:"longitude"`
}

type embeddedPosition struct {
	Geocodeable
	Address string `geocode:"address"`
	Position
}

func TestTagDriver_IsGeocodeable(t *testing.T) {
	d := NewTagDriver()

	assert.True(t, d.IsGeocodeable(&taggedPlace{}))
	assert.True(t, d.IsGeocodeable(taggedPlace{}))
	assert.False(t, d.IsGeocodeable(&untagged{}))
	assert.False(t, d.IsGeocodeable("a string"))
	assert.False(t, d.IsGeocodeable(nil))
}

func TestTagDriver_LoadPropertyMetadata(t *testing.T) {
	d := NewTagDriver()

	meta, err := d.LoadMetadataFromObject(&taggedPlace{})
	require.NoError(t, err)

	assert.Nil(t, meta.AddressGetter)
	require.NotNil(t, meta.AddressProperty)
	assert.Equal(t, "Address", meta.AddressProperty.Name())
	assert.Equal(t, "Latitude", meta.LatitudeProperty.Name())
	assert.Equal(t, "Longitude", meta.LongitudeProperty.Name())
	assert.Equal(t, meta.AddressProperty, meta.Address())
}

func TestTagDriver_LoadGetterMetadata(t *testing.T) {
	d := NewTagDriver()

	meta, err := d.LoadMetadataFromObject(&office{})
	require.NoError(t, err)

	require.NotNil(t, meta.AddressGetter)
	assert.Equal(t, "FullAddress", meta.Address().Name())

	v, err := meta.Address().Value(&office{Street: "1 Main St", City: "Springfield"})
	require.NoError(t, err)
	assert.Equal(t, "1 Main St, Springfield", v)
}

func TestTagDriver_PromotedFields(t *testing.T) {
	d := NewTagDriver()

	meta, err := d.LoadMetadataFromObject(&embeddedPosition{})
	require.NoError(t, err)

	e := &embeddedPosition{}
	require.NoError(t, meta.LatitudeProperty.SetFloat(e, 1.5))
	require.NoError(t, meta.LongitudeProperty.SetFloat(e, -2.5))
	assert.Equal(t, Position{Lat: 1.5, Lng: -2.5}, e.Position)
}

func TestTagDriver_CachesPerType(t *testing.T) {
	d := NewTagDriver()

	m1, err := d.LoadMetadataFromObject(&taggedPlace{})
	require.NoError(t, err)
	m2, err := d.LoadMetadataFromObject(&taggedPlace{Name: "other"})
	require.NoError(t, err)

	assert.Same(t, m1, m2)
}

func TestTagDriver_InvalidMappings(t *testing.T) {
	type noAddress struct {
		Geocodeable
		Lat float64 `geocode:"latitude"`
		Lng float64 `geocode:"longitude"`
	}
	type stringLatitude struct {
		Geocodeable
		Address string `geocode:"address"`
		Lat     string `geocode:"latitude"`
		Lng     float64 `geocode:"longitude"`
	}
	type missingGetter struct {
		Geocodeable `geocode:"getter=Nope"`
		Lat         float64 `geocode:"latitude"`
		Lng         float64 `geocode:"longitude"`
	}
	type duplicateRole struct {
		Geocodeable
		A   string  `geocode:"address"`
		B   string  `geocode:"address"`
		Lat float64 `geocode:"latitude"`
		Lng float64 `geocode:"longitude"`
	}
	type unknownRole struct {
		Geocodeable
		A string `geocode:"altitude"`
	}

	tests := []struct {
		name   string
		entity any
	}{
		{"no address", &noAddress{}},
		{"non-float latitude", &stringLatitude{}},
		{"missing getter", &missingGetter{}},
		{"duplicate role", &duplicateRole{}},
		{"unknown role", &unknownRole{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTagDriver().LoadMetadataFromObject(tt.entity)
			require.ErrorIs(t, err, ErrInvalidMapping)
		})
	}
}

func TestTagDriver_NotGeocodeable(t *testing.T) {
	_, err := NewTagDriver().LoadMetadataFromObject(&untagged{})
	require.ErrorIs(t, err, ErrNotGeocodeable)
}

func TestPropertyAccessor_SetFloatVariants(t *testing.T) {
	type coords struct {
		F64  float64
		F32  float32
		PF64 *float64
		Null sql.NullFloat64
	}
	typ := reflect.TypeOf(coords{})
	c := &coords{}

	for _, name := range []string{"F64", "F32", "PF64", "Null"} {
		p, err := NewPropertyAccessor(typ, name)
		require.NoError(t, err)
		require.NoError(t, p.SetFloat(c, 12.5))
	}

	assert.Equal(t, 12.5, c.F64)
	assert.Equal(t, float32(12.5), c.F32)
	require.NotNil(t, c.PF64)
	assert.Equal(t, 12.5, *c.PF64)
	assert.Equal(t, sql.NullFloat64{Float64: 12.5, Valid: true}, c.Null)
}

func TestPropertyAccessor_RejectsWrongEntity(t *testing.T) {
	p, err := NewPropertyAccessor(reflect.TypeOf(untagged{}), "Lat")
	require.NoError(t, err)

	require.Error(t, p.SetFloat(untagged{}, 1), "non-pointer is not addressable")
	require.Error(t, p.SetFloat((*untagged)(nil), 1))
	require.Error(t, p.SetFloat(&taggedPlace{}, 1))
}

func TestRegistryDriver(t *testing.T) {
	d := NewRegistryDriver()
	require.NoError(t, d.Register(&untagged{}, Fields{
		AddressProperty:   "Addr",
		LatitudeProperty:  "Lat",
		LongitudeProperty: "Lng",
	}))

	assert.True(t, d.IsGeocodeable(&untagged{}))
	assert.False(t, d.IsGeocodeable(&taggedPlace{}))

	meta, err := d.LoadMetadataFromObject(&untagged{})
	require.NoError(t, err)
	assert.Equal(t, "Addr", meta.AddressProperty.Name())

	err = d.Register(&untagged{}, Fields{AddressProperty: "Addr", LatitudeProperty: "Lat"})
	require.ErrorIs(t, err, ErrInvalidMapping)
}

func TestChainDriver(t *testing.T) {
	registry := NewRegistryDriver()
	require.NoError(t, registry.Register(&untagged{}, Fields{
		AddressProperty:   "Addr",
		LatitudeProperty:  "Lat",
		LongitudeProperty: "Lng",
	}))
	chain := NewChainDriver(NewTagDriver(), registry)

	assert.True(t, chain.IsGeocodeable(&taggedPlace{}))
	assert.True(t, chain.IsGeocodeable(&untagged{}))
	assert.False(t, chain.IsGeocodeable(&struct{ X int }{}))

	meta, err := chain.LoadMetadataFromObject(&untagged{})
	require.NoError(t, err)
	assert.Equal(t, "Addr", meta.AddressProperty.Name())

	_, err = chain.LoadMetadataFromObject(&struct{ X int }{})
	require.ErrorIs(t, err, ErrNotGeocodeable)
}
