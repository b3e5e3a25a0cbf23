package domain

import (
	"fmt"
	"reflect"
)

// Resolver returns the value of a ":user.<name>" placeholder.
type Resolver func(name string) (any, error)

// Bind replaces every placeholder in p with the resolver's value. A resolver
// error, or a value that makes a condition invalid, is reported as ErrMalformed.
func Bind(p Predicate, resolve Resolver) (Predicate, error) {
	switch v := p.(type) {
	case constant:
		return v, nil
	case and:
		terms, err := bindAll(v, resolve)
		if err != nil {
			return nil, err
		}
		return And(terms...), nil
	case or:
		terms, err := bindAll(v, resolve)
		if err != nil {
			return nil, err
		}
		return Or(terms...), nil
	case not:
		inner, err := Bind(v.p, resolve)
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	case cond:
		name, unbound := v.value.(Placeholder)
		if !unbound {
			return v, nil
		}
		value, err := resolve(string(name))
		if err != nil {
			return nil, fmt.Errorf("%w: placeholder %s: %v", ErrMalformed, name, err)
		}
		v.value = flatten(value)
		return v.normalize()
	}
	return nil, malformed("unknown predicate %T", p)
}

func bindAll(terms []Predicate, resolve Resolver) ([]Predicate, error) {
	out := make([]Predicate, 0, len(terms))
	for _, t := range terms {
		b, err := Bind(t, resolve)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// flatten turns typed slices such as []uint64 into []any.
func flatten(v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.([]byte); ok {
		return string(v.([]byte))
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return flatten(rv.Elem().Interface())
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
