// Package criteria describes which stored rows a collection loads.
//
// A Criteria is a tree of field comparisons joined by AND/OR. The same value
// is evaluated in memory by Match and translated to SQL by the gorm store.
package criteria

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/ammar0144/bo4go/pkg/order"
)

// Operator represents a comparison operator
type Operator string

const (
	Equal              Operator = "="
	NotEqual           Operator = "!="
	GreaterThan        Operator = ">"
	GreaterThanOrEqual Operator = ">="
	LessThan           Operator = "<"
	LessThanOrEqual    Operator = "<="
	Like               Operator = "LIKE"
	In                 Operator = "IN"
	IsNull             Operator = "IS NULL"
	IsNotNull          Operator = "IS NOT NULL"
)

// LogicalOperator joins child criteria
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// Criteria is either a leaf comparison (Field/Operator/Value) or a group
// (Logical/Children)
type Criteria struct {
	Field    string
	Operator Operator
	Value    any

	Logical  LogicalOperator
	Children []*Criteria
}

// Where creates a leaf comparison
func Where(field string, op Operator, value any) *Criteria {
	return &Criteria{Field: field, Operator: op, Value: value}
}

// Eq is shorthand for Where(field, Equal, value)
func Eq(field string, value any) *Criteria {
	return Where(field, Equal, value)
}

// AllOf joins criteria with AND, skipping nil entries
func AllOf(items ...*Criteria) *Criteria {
	return group(And, items)
}

// AnyOf joins criteria with OR, skipping nil entries
func AnyOf(items ...*Criteria) *Criteria {
	return group(Or, items)
}

func group(op LogicalOperator, items []*Criteria) *Criteria {
	var children []*Criteria
	for _, c := range items {
		if c != nil {
			children = append(children, c)
		}
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	return &Criteria{Logical: op, Children: children}
}

// And returns c AND other
func (c *Criteria) And(other *Criteria) *Criteria {
	return AllOf(c, other)
}

// Or returns c OR other
func (c *Criteria) Or(other *Criteria) *Criteria {
	return AnyOf(c, other)
}

// IsGroup reports whether c joins child criteria
func (c *Criteria) IsGroup() bool {
	return c != nil && c.Logical != ""
}

// Fields returns every field name referenced by c, in order of appearance
func (c *Criteria) Fields() []string {
	if c == nil {
		return nil
	}
	if !c.IsGroup() {
		return []string{c.Field}
	}
	var out []string
	for _, child := range c.Children {
		out = append(out, child.Fields()...)
	}
	return out
}

// Match evaluates c against reader. A nil criteria matches everything.
func (c *Criteria) Match(reader order.PropertyReader) bool {
	if c == nil {
		return true
	}
	if c.IsGroup() {
		for _, child := range c.Children {
			m := child.Match(reader)
			if c.Logical == Or && m {
				return true
			}
			if c.Logical == And && !m {
				return false
			}
		}
		return c.Logical == And
	}

	v, err := reader.PropertyValue(c.Field)
	if err != nil {
		return false
	}
	return c.matchValue(v)
}

func (c *Criteria) matchValue(v any) bool {
	switch c.Operator {
	case IsNull:
		return isNull(v)
	case IsNotNull:
		return !isNull(v)
	case In:
		rv := reflect.ValueOf(c.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return compare(v, c.Value) == 0
		}
		for i := 0; i < rv.Len(); i++ {
			if compare(v, rv.Index(i).Interface()) == 0 {
				return true
			}
		}
		return false
	case Like:
		if isNull(v) {
			return false
		}
		return likePattern(fmt.Sprint(c.Value)).MatchString(fmt.Sprint(v))
	}

	if isNull(v) || isNull(c.Value) {
		// SQL semantics: comparisons with NULL are never true
		return false
	}
	r := compare(v, c.Value)
	switch c.Operator {
	case Equal:
		return r == 0
	case NotEqual:
		return r != 0
	case GreaterThan:
		return r > 0
	case GreaterThanOrEqual:
		return r >= 0
	case LessThan:
		return r < 0
	case LessThanOrEqual:
		return r <= 0
	}
	return false
}

// String renders c in a stable, SQL-like form used for logging and cache keys
func (c *Criteria) String() string {
	if c == nil {
		return ""
	}
	if c.IsGroup() {
		parts := make([]string, len(c.Children))
		for i, child := range c.Children {
			s := child.String()
			if child.IsGroup() {
				s = "(" + s + ")"
			}
			parts[i] = s
		}
		return strings.Join(parts, " "+string(c.Logical)+" ")
	}
	switch c.Operator {
	case IsNull, IsNotNull:
		return c.Field + " " + string(c.Operator)
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Operator, formatValue(c.Value))
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case time.Time:
		return "'" + val.UTC().Format(time.RFC3339Nano) + "'"
	case fmt.Stringer:
		return "'" + val.String() + "'"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = formatValue(rv.Index(i).Interface())
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprint(v)
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// compare reuses the order package's value ordering through a one-field
// criteria so both packages agree on how values sort.
func compare(a, b any) int {
	c := order.New().Add("v")
	return c.Compare(value{a}, value{b})
}

type value struct{ v any }

func (v value) PropertyValue(string) (any, error) { return v.v, nil }

func likePattern(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}
