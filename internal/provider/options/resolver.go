// Package options validates provider configuration maps. A Resolver declares
// which options exist, which are required, their defaults, and the types and
// values each accepts; Resolve applies those rules to user input.
package options

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

var (
	// ErrMissingOptions reports required options absent from the input.
	ErrMissingOptions = errors.New("missing required options")
	// ErrInvalidOptions reports an option of the wrong type or value.
	ErrInvalidOptions = errors.New("invalid option")
	// ErrUndefinedOptions reports input keys the resolver does not know.
	ErrUndefinedOptions = errors.New("undefined options")
)

// Options is a resolved option map.
type Options map[string]any

// Value returns option name as a T, or the zero T when it is unset, nil, or
// of another type.
func Value[T any](o Options, name string) T {
	v, _ := o[name].(T)
	return v
}

// String returns a string option, or "" when unset or null.
func (o Options) String(name string) string { return Value[string](o, name) }

// Normalizer rewrites a value after validation. It sees the other resolved
// options, before any normalizer ran.
type Normalizer func(opts Options, value any) (any, error)

// Resolver holds the option schema of one factory.
type Resolver struct {
	defined     map[string]bool
	defaults    map[string]any
	required    map[string]bool
	types       map[string][]TypeCheck
	values      map[string][]any
	normalizers map[string]Normalizer
}

// NewResolver creates a Resolver that accepts no options.
func NewResolver() *Resolver {
	return &Resolver{
		defined:     make(map[string]bool),
		defaults:    make(map[string]any),
		required:    make(map[string]bool),
		types:       make(map[string][]TypeCheck),
		values:      make(map[string][]any),
		normalizers: make(map[string]Normalizer),
	}
}

// SetDefaults defines each option with a default value. A nil default still
// counts as set, so the option resolves to nil when omitted.
func (r *Resolver) SetDefaults(defaults map[string]any) *Resolver {
	for name, v := range defaults {
		r.defined[name] = true
		r.defaults[name] = v
	}
	return r
}

// SetRequired defines options that must be present after defaults apply.
func (r *Resolver) SetRequired(names ...string) *Resolver {
	for _, name := range names {
		r.defined[name] = true
		r.required[name] = true
	}
	return r
}

// SetDefined declares optional options without a default.
func (r *Resolver) SetDefined(names ...string) *Resolver {
	for _, name := range names {
		r.defined[name] = true
	}
	return r
}

// SetAllowedTypes restricts name to values passing any of checks.
func (r *Resolver) SetAllowedTypes(name string, checks ...TypeCheck) *Resolver {
	r.defined[name] = true
	r.types[name] = checks
	return r
}

// SetAllowedValues restricts name to one of values.
func (r *Resolver) SetAllowedValues(name string, values ...any) *Resolver {
	r.defined[name] = true
	r.values[name] = values
	return r
}

// SetNormalizer registers n for name.
func (r *Resolver) SetNormalizer(name string, n Normalizer) *Resolver {
	r.defined[name] = true
	r.normalizers[name] = n
	return r
}

// DefinedOptions returns the known option names in sorted order.
func (r *Resolver) DefinedOptions() []string { return sortedKeys(r.defined) }

// Resolve validates input and returns it merged with defaults.
func (r *Resolver) Resolve(input map[string]any) (Options, error) {
	var undefined []string
	for name := range input {
		if !r.defined[name] {
			undefined = append(undefined, name)
		}
	}
	if len(undefined) > 0 {
		slices.Sort(undefined)
		return nil, fmt.Errorf("%w: %s (defined options are: %s)",
			ErrUndefinedOptions, quoteAll(undefined), quoteAll(r.DefinedOptions()))
	}

	resolved := make(Options, len(r.defaults)+len(input))
	for name, v := range r.defaults {
		resolved[name] = v
	}
	for name, v := range input {
		resolved[name] = v
	}

	var missing []string
	for name := range r.required {
		if _, ok := resolved[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingOptions, quoteAll(missing))
	}

	for _, name := range sortedKeys(resolved) {
		if err := r.validate(name, resolved[name]); err != nil {
			return nil, err
		}
	}

	normalized := make(Options, len(resolved))
	for name, v := range resolved {
		normalized[name] = v
	}
	for _, name := range sortedKeys(r.normalizers) {
		v, ok := resolved[name]
		if !ok {
			continue
		}
		nv, err := r.normalizers[name](resolved, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidOptions, name, err)
		}
		normalized[name] = nv
	}
	return normalized, nil
}

func (r *Resolver) validate(name string, v any) error {
	if checks := r.types[name]; len(checks) > 0 {
		ok := false
		names := make([]string, len(checks))
		for i, c := range checks {
			names[i] = c.Name
			if c.Accepts(v) {
				ok = true
			}
		}
		if !ok {
			return fmt.Errorf("%w: %q with value %v is expected to be of type \"%s\", but is of type %q",
				ErrInvalidOptions, name, v, strings.Join(names, `" or "`), typeName(v))
		}
	}
	if allowed := r.values[name]; len(allowed) > 0 {
		if !slices.ContainsFunc(allowed, func(a any) bool { return reflect.DeepEqual(a, v) }) {
			return fmt.Errorf("%w: %q with value %v is invalid, accepted values are: %v",
				ErrInvalidOptions, name, v, allowed)
		}
	}
	return nil
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return reflect.TypeOf(v).String()
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
