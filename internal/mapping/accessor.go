package mapping

import (
	"database/sql"
	"fmt"
	"reflect"
)

var nullFloat64Type = reflect.TypeOf(sql.NullFloat64{})

// Accessor reads a value from an entity, either from a field or through a
// zero-argument method.
type Accessor interface {
	Name() string
	Value(entity any) (any, error)
}

// PropertyAccessor reads and writes one exported struct field, following
// embedded structs by index path.
type PropertyAccessor struct {
	owner reflect.Type
	name  string
	index []int
	typ   reflect.Type
}

// NewPropertyAccessor resolves field name on struct type t.
func NewPropertyAccessor(t reflect.Type, name string) (*PropertyAccessor, error) {
	f, ok := t.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", ErrInvalidMapping, t, name)
	}
	if !f.IsExported() {
		return nil, fmt.Errorf("%w: %s.%s is not exported", ErrInvalidMapping, t, name)
	}
	return &PropertyAccessor{owner: t, name: name, index: f.Index, typ: f.Type}, nil
}

// Name is the Go field name, which is also the key used in change sets.
func (p *PropertyAccessor) Name() string { return p.name }

// Type is the declared field type.
func (p *PropertyAccessor) Type() reflect.Type { return p.typ }

// Value returns the current field value.
func (p *PropertyAccessor) Value(entity any) (any, error) {
	f, err := p.field(entity)
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

// SetFloat stores x into a coordinate field. Supported field types are float
// kinds, pointers to float kinds, and sql.NullFloat64.
func (p *PropertyAccessor) SetFloat(entity any, x float64) error {
	f, err := p.field(entity)
	if err != nil {
		return err
	}
	switch {
	case f.Type() == nullFloat64Type:
		f.Set(reflect.ValueOf(sql.NullFloat64{Float64: x, Valid: true}))
	case f.Kind() == reflect.Pointer:
		v := reflect.New(f.Type().Elem())
		v.Elem().SetFloat(x)
		f.Set(v)
	default:
		f.SetFloat(x)
	}
	return nil
}

func (p *PropertyAccessor) field(entity any) (reflect.Value, error) {
	v, err := structValue(entity, p.owner)
	if err != nil {
		return reflect.Value{}, err
	}
	f, err := v.FieldByIndexErr(p.index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("field %s: %w", p.name, err)
	}
	return f, nil
}

// GetterAccessor invokes a zero-argument, single-result method. The method may
// have a value or pointer receiver.
type GetterAccessor struct {
	owner reflect.Type
	name  string
}

// NewGetterAccessor resolves method name on *t.
func NewGetterAccessor(t reflect.Type, name string) (*GetterAccessor, error) {
	m, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no method %q", ErrInvalidMapping, t, name)
	}
	// In includes the receiver.
	if m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
		return nil, fmt.Errorf("%w: %s.%s must take no arguments and return one value", ErrInvalidMapping, t, name)
	}
	return &GetterAccessor{owner: t, name: name}, nil
}

// Name is the method name.
func (g *GetterAccessor) Name() string { return g.name }

// Value calls the getter on entity.
func (g *GetterAccessor) Value(entity any) (any, error) {
	v, err := structValue(entity, g.owner)
	if err != nil {
		return nil, err
	}
	out := v.Addr().MethodByName(g.name).Call(nil)
	return out[0].Interface(), nil
}

// structValue returns the addressable struct behind entity, which must be a
// non-nil pointer to owner.
func structValue(entity any, owner reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("entity must be a non-nil pointer to %s, got %T", owner, entity)
	}
	v = v.Elem()
	if v.Type() != owner {
		return reflect.Value{}, fmt.Errorf("entity type %s does not match metadata type %s", v.Type(), owner)
	}
	return v, nil
}

func isCoordinateType(t reflect.Type) bool {
	if t == nullFloat64Type {
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Float64 || t.Kind() == reflect.Float32
}
