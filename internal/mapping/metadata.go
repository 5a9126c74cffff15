// Package mapping describes how a Go type exposes an address and a pair of
// coordinate fields to the geocoding listener.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInvalidMapping reports a type whose geocoding declaration cannot be used.
	ErrInvalidMapping = errors.New("invalid geocoding mapping")
	// ErrNotGeocodeable is returned when metadata is requested for a type no driver knows.
	ErrNotGeocodeable = errors.New("entity is not geocodeable")
)

// Geocodeable marks a struct as geocodeable when embedded. A getter supplying
// the address can be named in its tag:
//
//	type Office struct {
//		mapping.Geocodeable `geocode:"getter=FullAddress"`
//		Lat float64 `geocode:"latitude"`
//		Lng float64 `geocode:"longitude"`
//	}
type Geocodeable struct{}

// Metadata is the resolved geocoding descriptor of one entity type.
type Metadata struct {
	Type              reflect.Type
	AddressProperty   *PropertyAccessor
	AddressGetter     *GetterAccessor
	LatitudeProperty  *PropertyAccessor
	LongitudeProperty *PropertyAccessor
}

// Address returns the accessor used to read the address. A getter wins over a
// property when both are declared.
func (m *Metadata) Address() Accessor {
	if m.AddressGetter != nil {
		return m.AddressGetter
	}
	return m.AddressProperty
}

// Fields names the members of a type that carry geocoding data.
type Fields struct {
	AddressProperty   string
	AddressGetter     string
	LatitudeProperty  string
	LongitudeProperty string
}

// Driver supplies geocoding metadata for entities.
type Driver interface {
	IsGeocodeable(entity any) bool
	LoadMetadataFromObject(entity any) (*Metadata, error)
}

// NewMetadata resolves fields against struct type t.
func NewMetadata(t reflect.Type, fields Fields) (*Metadata, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidMapping, t)
	}
	if fields.AddressGetter == "" && fields.AddressProperty == "" {
		return nil, fmt.Errorf("%w: %s declares no address property or getter", ErrInvalidMapping, t)
	}
	if fields.LatitudeProperty == "" || fields.LongitudeProperty == "" {
		return nil, fmt.Errorf("%w: %s must declare both latitude and longitude", ErrInvalidMapping, t)
	}

	m := &Metadata{Type: t}
	var err error
	if fields.AddressGetter != "" {
		if m.AddressGetter, err = NewGetterAccessor(t, fields.AddressGetter); err != nil {
			return nil, err
		}
	}
	if fields.AddressProperty != "" {
		if m.AddressProperty, err = NewPropertyAccessor(t, fields.AddressProperty); err != nil {
			return nil, err
		}
	}
	if m.LatitudeProperty, err = coordinateAccessor(t, fields.LatitudeProperty); err != nil {
		return nil, err
	}
	if m.LongitudeProperty, err = coordinateAccessor(t, fields.LongitudeProperty); err != nil {
		return nil, err
	}
	return m, nil
}

func coordinateAccessor(t reflect.Type, name string) (*PropertyAccessor, error) {
	p, err := NewPropertyAccessor(t, name)
	if err != nil {
		return nil, err
	}
	if !isCoordinateType(p.Type()) {
		return nil, fmt.Errorf("%w: %s.%s has type %s, want a float, *float or sql.NullFloat64",
			ErrInvalidMapping, t, name, p.Type())
	}
	return p, nil
}

// structType returns the struct type behind entity, dereferencing pointers,
// or nil when entity is not a struct.
func structType(entity any) reflect.Type {
	t := reflect.TypeOf(entity)
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}
