package mapping

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// TagName is the struct tag read by TagDriver.
const TagName = "geocode"

var geocodeableType = reflect.TypeOf(Geocodeable{})

type cachedMetadata struct {
	meta *Metadata
	err  error
}

// TagDriver reads geocoding declarations from struct tags. A type is
// geocodeable when it embeds Geocodeable. Results are cached per type.
type TagDriver struct {
	cache sync.Map // reflect.Type -> cachedMetadata
}

// NewTagDriver creates a TagDriver with an empty cache.
func NewTagDriver() *TagDriver {
	return &TagDriver{}
}

// IsGeocodeable reports whether entity's type embeds Geocodeable.
func (d *TagDriver) IsGeocodeable(entity any) bool {
	t := structType(entity)
	if t == nil {
		return false
	}
	_, ok := markerField(t)
	return ok
}

// LoadMetadataFromObject returns the metadata for entity's type.
func (d *TagDriver) LoadMetadataFromObject(entity any) (*Metadata, error) {
	t := structType(entity)
	if t == nil {
		return nil, fmt.Errorf("%w: %T", ErrNotGeocodeable, entity)
	}
	if c, ok := d.cache.Load(t); ok {
		cm := c.(cachedMetadata)
		return cm.meta, cm.err
	}

	meta, err := d.load(t)
	d.cache.Store(t, cachedMetadata{meta: meta, err: err})
	return meta, err
}

func (d *TagDriver) load(t reflect.Type) (*Metadata, error) {
	marker, ok := markerField(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not embed mapping.Geocodeable", ErrNotGeocodeable, t)
	}

	var fields Fields
	if tag := marker.Tag.Get(TagName); tag != "" {
		for _, opt := range strings.Split(tag, ",") {
			key, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
			switch key {
			case "getter":
				fields.AddressGetter = value
			case "":
			default:
				return nil, fmt.Errorf("%w: %s: unknown marker option %q", ErrInvalidMapping, t, key)
			}
		}
	}

	if err := collectTags(t, &fields); err != nil {
		return nil, err
	}
	return NewMetadata(t, fields)
}

// collectTags walks t and promoted fields of embedded structs, filling fields
// from geocode tags. Duplicate roles are rejected.
func collectTags(t reflect.Type, fields *Fields) error {
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Type == geocodeableType {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get(TagName) == "" {
			if err := collectTags(f.Type, fields); err != nil {
				return err
			}
			continue
		}

		role := f.Tag.Get(TagName)
		if role == "" || role == "-" {
			continue
		}
		var slot *string
		switch role {
		case "address":
			slot = &fields.AddressProperty
		case "latitude":
			slot = &fields.LatitudeProperty
		case "longitude":
			slot = &fields.LongitudeProperty
		default:
			return fmt.Errorf("%w: %s.%s: unknown role %q", ErrInvalidMapping, t, f.Name, role)
		}
		if *slot != "" {
			return fmt.Errorf("%w: %s: %s declared on both %s and %s", ErrInvalidMapping, t, role, *slot, f.Name)
		}
		*slot = f.Name
	}
	return nil
}

func markerField(t reflect.Type) (reflect.StructField, bool) {
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Anonymous && f.Type == geocodeableType {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

// RegistryDriver holds metadata registered in code, for types that cannot
// carry tags.
type RegistryDriver struct {
	mu    sync.RWMutex
	types map[reflect.Type]*Metadata
}

// NewRegistryDriver creates an empty RegistryDriver.
func NewRegistryDriver() *RegistryDriver {
	return &RegistryDriver{types: make(map[reflect.Type]*Metadata)}
}

// Register declares sample's type geocodeable with the given fields, which are
// validated immediately.
func (d *RegistryDriver) Register(sample any, fields Fields) error {
	t := structType(sample)
	if t == nil {
		return fmt.Errorf("%w: %T is not a struct", ErrInvalidMapping, sample)
	}
	meta, err := NewMetadata(t, fields)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.types[t] = meta
	return nil
}

func (d *RegistryDriver) IsGeocodeable(entity any) bool {
	t := structType(entity)
	if t == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.types[t]
	return ok
}

func (d *RegistryDriver) LoadMetadataFromObject(entity any) (*Metadata, error) {
	t := structType(entity)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if meta, ok := d.types[t]; ok {
		return meta, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotGeocodeable, entity)
}

// ChainDriver consults drivers in order; the first one that knows a type
// supplies its metadata.
type ChainDriver struct {
	drivers []Driver
}

// NewChainDriver creates a ChainDriver over drivers.
func NewChainDriver(drivers ...Driver) *ChainDriver {
	return &ChainDriver{drivers: drivers}
}

func (c *ChainDriver) IsGeocodeable(entity any) bool {
	for _, d := range c.drivers {
		if d.IsGeocodeable(entity) {
			return true
		}
	}
	return false
}

func (c *ChainDriver) LoadMetadataFromObject(entity any) (*Metadata, error) {
	for _, d := range c.drivers {
		if d.IsGeocodeable(entity) {
			return d.LoadMetadataFromObject(entity)
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrNotGeocodeable, entity)
}
