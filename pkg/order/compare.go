package order

import (
	"cmp"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// PropertyReader is implemented by anything whose named properties can be
// read: business objects and raw store rows.
type PropertyReader interface {
	PropertyValue(name string) (any, error)
}

// Navigator is implemented by objects that can follow a named relationship
// to a single related object.
type Navigator interface {
	RelatedObject(name string) (any, error)
}

// Compare walks the fields in order and returns the first non-zero per-field
// comparison. Values that cannot be resolved compare as nil, and nil sorts
// before any other value.
func (c *Criteria) Compare(a, b any) int {
	if c == nil {
		return 0
	}
	for _, f := range c.fields {
		r := compareValues(Resolve(a, f), Resolve(b, f))
		if r == 0 {
			continue
		}
		if f.Direction == Descending {
			return -r
		}
		return r
	}
	return 0
}

// Comparer returns Compare as a plain function for use with slices.SortStableFunc
func (c *Criteria) Comparer() func(a, b any) int {
	return c.Compare
}

// Resolve reads the value of f from obj, walking f.Source first
func Resolve(obj any, f Field) any {
	current := obj
	for _, rel := range f.Source {
		nav, ok := current.(Navigator)
		if !ok || isNil(current) {
			return nil
		}
		next, err := nav.RelatedObject(rel)
		if err != nil || isNil(next) {
			return nil
		}
		current = next
	}

	reader, ok := current.(PropertyReader)
	if !ok || isNil(current) {
		return nil
	}
	v, err := reader.PropertyValue(f.Name)
	if err != nil {
		return nil
	}
	return v
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// compareValues orders nil first, then numbers, strings, times and booleans
// by their natural order. Mixed kinds fall back to their formatted text.
func compareValues(a, b any) int {
	a, b = deref(a), deref(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb)
		}
	}

	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb)
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0
			case !va:
				return -1
			default:
				return 1
			}
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func deref(v any) any {
	if isNil(v) {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return rv.Elem().Interface()
	}
	return v
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
