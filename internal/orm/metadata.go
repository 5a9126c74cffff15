package orm

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Tabler lets an entity name its table.
type Tabler interface {
	TableName() string
}

// FieldMapping maps one struct field to a column.
type FieldMapping struct {
	Name       string
	Column     string
	Index      []int
	PrimaryKey bool
}

// EntityMetadata is the persistence mapping of one entity type, built from
// `db:"column"` tags. `db:"id,pk"` marks the primary key.
type EntityMetadata struct {
	Type   reflect.Type
	Table  string
	Fields []FieldMapping
	pk     int
}

var metadataCache sync.Map // reflect.Type -> *EntityMetadata

// MetadataFor returns the mapping of entity's type. entity must be a pointer
// to a struct with a primary key field.
func MetadataFor(entity any) (*EntityMetadata, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: want a non-nil pointer to struct, got %T", ErrInvalidEntity, entity)
	}
	t := v.Elem().Type()
	if m, ok := metadataCache.Load(t); ok {
		return m.(*EntityMetadata), nil
	}

	m := &EntityMetadata{Type: t, Table: tableName(entity, t), pk: -1}
	if err := m.collect(t, nil); err != nil {
		return nil, err
	}
	if m.pk < 0 {
		return nil, fmt.Errorf("%w: %s has no primary key field", ErrInvalidEntity, t)
	}

	actual, _ := metadataCache.LoadOrStore(t, m)
	return actual.(*EntityMetadata), nil
}

// collect maps the tagged fields of t. Embedded structs without a db tag are
// walked so their promoted fields map like top-level ones.
func (m *EntityMetadata) collect(t reflect.Type, parent []int) error {
	for i := range t.NumField() {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("db")
		index := append(slices.Clone(parent), f.Index...)
		if !ok && f.Anonymous && f.Type.Kind() == reflect.Struct {
			if err := m.collect(f.Type, index); err != nil {
				return err
			}
			continue
		}
		if !ok || tag == "-" || !f.IsExported() {
			continue
		}
		column, opts, _ := strings.Cut(tag, ",")
		if column == "" {
			column = strings.ToLower(f.Name)
		}
		if _, dup := m.Field(f.Name); dup {
			return fmt.Errorf("%w: %s maps field %s twice", ErrInvalidEntity, m.Type, f.Name)
		}
		fm := FieldMapping{Name: f.Name, Column: column, Index: index, PrimaryKey: opts == "pk"}
		if fm.PrimaryKey {
			if m.pk >= 0 {
				return fmt.Errorf("%w: %s has more than one primary key", ErrInvalidEntity, m.Type)
			}
			m.pk = len(m.Fields)
		}
		m.Fields = append(m.Fields, fm)
	}
	return nil
}

func tableName(entity any, t reflect.Type) string {
	if tn, ok := entity.(Tabler); ok {
		return tn.TableName()
	}
	return strings.ToLower(t.Name())
}

// PrimaryKey returns the primary key mapping.
func (m *EntityMetadata) PrimaryKey() FieldMapping { return m.Fields[m.pk] }

// Field looks up a mapping by Go field name.
func (m *EntityMetadata) Field(name string) (FieldMapping, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMapping{}, false
}

// Value returns the current value of field f on entity.
func (m *EntityMetadata) Value(entity any, f FieldMapping) any {
	return reflect.ValueOf(entity).Elem().FieldByIndex(f.Index).Interface()
}

// Pointer returns a pointer to field f on entity, suitable for sql Scan.
func (m *EntityMetadata) Pointer(entity any, f FieldMapping) any {
	return reflect.ValueOf(entity).Elem().FieldByIndex(f.Index).Addr().Interface()
}

// IDOf returns the primary key value as int64. Non-integer keys report false.
func (m *EntityMetadata) IDOf(entity any) (int64, bool) {
	v := reflect.ValueOf(entity).Elem().FieldByIndex(m.PrimaryKey().Index)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), true
	default:
		return 0, false
	}
}

// SetID stores a generated primary key on entity.
func (m *EntityMetadata) SetID(entity any, id int64) error {
	v := reflect.ValueOf(entity).Elem().FieldByIndex(m.PrimaryKey().Index)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(uint64(id))
	default:
		return fmt.Errorf("%w: primary key %s.%s is not an integer", ErrInvalidEntity, m.Type, m.PrimaryKey().Name)
	}
	return nil
}

// snapshot captures the comparable state of every mapped field. Pointers are
// dereferenced so in-place writes through them are detected.
func (m *EntityMetadata) snapshot(entity any) map[string]any {
	v := reflect.ValueOf(entity).Elem()
	out := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		out[f.Name] = snapshotValue(v.FieldByIndex(f.Index))
	}
	return out
}

func snapshotValue(v reflect.Value) any {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		return v.Elem().Interface()
	}
	return v.Interface()
}
