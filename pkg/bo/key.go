package bo

import (
	"fmt"
	"maps"
	"strings"

	"github.com/ammar0144/bo4go/pkg/order"
)

// Key is the canonical identity of an object: "Prop=value" pairs of the
// primary key properties joined by ";". Composite identities are supported.
type Key string

// KeyOf builds the identity of reader according to def
func KeyOf(def *ClassDef, reader order.PropertyReader) Key {
	parts := make([]string, len(def.PrimaryKey))
	for i, name := range def.PrimaryKey {
		v, err := reader.PropertyValue(name)
		if err != nil || v == nil {
			parts[i] = name + "="
			continue
		}
		parts[i] = fmt.Sprintf("%s=%v", name, v)
	}
	return Key(strings.Join(parts, ";"))
}

// String returns the key text
func (k Key) String() string {
	return string(k)
}

// Row is a flat property-name to value map exchanged with stores
type Row map[string]any

// PropertyValue implements order.PropertyReader
func (r Row) PropertyValue(name string) (any, error) {
	v, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("row has no property %s", name)
	}
	return v, nil
}

// Clone returns a shallow copy
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Pick returns a row restricted to names
func (r Row) Pick(names ...string) Row {
	out := make(Row, len(names))
	for _, n := range names {
		out[n] = r[n]
	}
	return out
}
