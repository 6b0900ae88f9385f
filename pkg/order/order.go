// Package order expresses multi-field, direction-aware sort orders whose
// fields may be reached through a chain of relationships.
//
// The canonical textual form is "Name ASC, Other.Path.Name DESC". Every
// segment of a dotted name except the last is a relationship name that is
// walked before the leaf property is read.
package order

import (
	"strings"

	"github.com/ammar0144/bo4go/pkg/errs"
)

// Direction is the sort direction of a single field
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// String returns ASC or DESC
func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Field is one component of an order criteria
type Field struct {
	// Name is the leaf property name
	Name string

	// Direction is the sort direction for this field
	Direction Direction

	// Source is the relationship path walked from the compared object to
	// the object owning Name. Empty means the property is local.
	Source []string
}

// FullName returns the dotted path including the source
func (f Field) FullName() string {
	if len(f.Source) == 0 {
		return f.Name
	}
	return strings.Join(f.Source, ".") + "." + f.Name
}

// String returns "FullName ASC|DESC"
func (f Field) String() string {
	return f.FullName() + " " + f.Direction.String()
}

// Criteria is an ordered list of fields
type Criteria struct {
	fields []Field
}

// New creates an empty criteria
func New() *Criteria {
	return &Criteria{}
}

// Add appends a field. The name may be dotted ("Car.Owner.Surname"); the
// direction defaults to Ascending.
func (c *Criteria) Add(name string, dir ...Direction) *Criteria {
	d := Ascending
	if len(dir) > 0 {
		d = dir[0]
	}
	c.fields = append(c.fields, newField(name, d))
	return c
}

// AddField appends a fully specified field
func (c *Criteria) AddField(f Field) *Criteria {
	f.Source = append([]string(nil), f.Source...)
	c.fields = append(c.fields, f)
	return c
}

// Fields returns a copy of the fields in order
func (c *Criteria) Fields() []Field {
	if c == nil {
		return nil
	}
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Len returns the number of fields
func (c *Criteria) Len() int {
	if c == nil {
		return 0
	}
	return len(c.fields)
}

// IsEmpty reports whether no field has been added
func (c *Criteria) IsEmpty() bool {
	return c.Len() == 0
}

// Equal reports whether both criteria have the same fields, directions and
// sources in the same order
func (c *Criteria) Equal(other *Criteria) bool {
	if c.Len() != other.Len() {
		return false
	}
	for i, f := range c.Fields() {
		o := other.fields[i]
		if f.Name != o.Name || f.Direction != o.Direction || len(f.Source) != len(o.Source) {
			return false
		}
		for j := range f.Source {
			if f.Source[j] != o.Source[j] {
				return false
			}
		}
	}
	return true
}

// String returns the canonical form "Name ASC, Other DESC"
func (c *Criteria) String() string {
	if c.IsEmpty() {
		return ""
	}
	parts := make([]string, len(c.fields))
	for i, f := range c.fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, ", ")
}

// Parse reads a comma separated list of "path [ASC|DESC]" tokens. The
// direction is case-insensitive. An empty string yields an empty criteria.
func Parse(s string) (*Criteria, error) {
	c := New()
	if strings.TrimSpace(s) == "" {
		return c, nil
	}

	for _, token := range strings.Split(s, ",") {
		parts := strings.Fields(token)
		switch len(parts) {
		case 0:
			return nil, errs.Parse("parse_order", "empty field in order criteria %q", s)
		case 1:
			c.fields = append(c.fields, newField(parts[0], Ascending))
		case 2:
			var dir Direction
			switch strings.ToUpper(parts[1]) {
			case "ASC":
				dir = Ascending
			case "DESC":
				dir = Descending
			default:
				return nil, errs.Parse("parse_order",
					"'%s' is an invalid sort direction for field '%s', expected ASC or DESC", parts[1], parts[0])
			}
			c.fields = append(c.fields, newField(parts[0], dir))
		default:
			return nil, errs.Parse("parse_order", "'%s' is not a valid order criteria field", strings.TrimSpace(token))
		}
	}

	return c, nil
}

// MustParse is like Parse but panics on error. Intended for package level
// declarations with literal input.
func MustParse(s string) *Criteria {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func newField(name string, dir Direction) Field {
	segments := strings.Split(name, ".")
	f := Field{
		Name:      segments[len(segments)-1],
		Direction: dir,
	}
	if len(segments) > 1 {
		f.Source = segments[:len(segments)-1]
	}
	return f
}
