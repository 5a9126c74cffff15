package options

import "reflect"

// TypeCheck accepts or rejects an option value.
type TypeCheck struct {
	Name    string
	Accepts func(v any) bool
}

// Built-in type checks.
var (
	String = TypeOf[string]()
	Bool   = TypeOf[bool]()
	Null   = TypeCheck{Name: "null", Accepts: func(v any) bool { return v == nil }}

	// Int accepts every integer kind.
	Int = TypeCheck{Name: "int", Accepts: func(v any) bool {
		if v == nil {
			return false
		}
		switch reflect.TypeOf(v).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
		return false
	}}

	// Float accepts floats and integers.
	Float = TypeCheck{Name: "float", Accepts: func(v any) bool {
		if v == nil {
			return false
		}
		switch reflect.TypeOf(v).Kind() {
		case reflect.Float32, reflect.Float64:
			return true
		}
		return Int.Accepts(v)
	}}

	// StringSlice accepts []string and []any holding only strings, the shape
	// YAML and JSON decoders produce.
	StringSlice = TypeCheck{Name: "[]string", Accepts: func(v any) bool {
		switch s := v.(type) {
		case []string:
			return true
		case []any:
			for _, e := range s {
				if _, ok := e.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	}}
)

// TypeOf accepts values assignable to T. For an interface T this accepts
// every implementation.
func TypeOf[T any]() TypeCheck {
	return TypeCheck{
		Name: reflect.TypeFor[T]().String(),
		Accepts: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
	}
}

// Strings converts a value accepted by StringSlice.
func Strings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
