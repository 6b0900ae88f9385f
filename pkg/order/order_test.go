package order

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	props map[string]any
	rels  map[string]*node
}

func (n *node) PropertyValue(name string) (any, error) {
	v, ok := n.props[name]
	if !ok {
		return nil, errors.New("no property " + name)
	}
	return v, nil
}

func (n *node) RelatedObject(name string) (any, error) {
	r, ok := n.rels[name]
	if !ok {
		return nil, errors.New("no relationship " + name)
	}
	return r, nil
}

func person(surname string, age int) *node {
	return &node{props: map[string]any{"Surname": surname, "Age": age}}
}

func TestAddSplitsDottedNames(t *testing.T) {
	c := New().Add("Surname").Add("Engine.Car.Owner.Surname", Descending)

	fields := c.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "Surname", fields[0].Name)
	assert.Empty(t, fields[0].Source)
	assert.Equal(t, Ascending, fields[0].Direction)

	assert.Equal(t, "Surname", fields[1].Name)
	assert.Equal(t, []string{"Engine", "Car", "Owner"}, fields[1].Source)
	assert.Equal(t, Descending, fields[1].Direction)
	assert.Equal(t, "Engine.Car.Owner.Surname", fields[1].FullName())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Field
	}{
		{"empty", "", nil},
		{"single default direction", "Surname", []Field{{Name: "Surname"}}},
		{"lower case direction", "Surname desc", []Field{{Name: "Surname", Direction: Descending}}},
		{
			"multiple fields",
			"Surname ASC, FirstName DESC",
			[]Field{{Name: "Surname"}, {Name: "FirstName", Direction: Descending}},
		},
		{
			"relationship path",
			"Car.Owner.Surname Desc",
			[]Field{{Name: "Surname", Direction: Descending, Source: []string{"Car", "Owner"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), c.Len())
			for i, f := range c.Fields() {
				assert.Equal(t, tt.want[i].Name, f.Name)
				assert.Equal(t, tt.want[i].Direction, f.Direction)
				assert.Equal(t, len(tt.want[i].Source), len(f.Source))
			}
		})
	}
}

func TestParseInvalidDirection(t *testing.T) {
	_, err := Parse("Surname ASC, FirstName DOWN")
	require.Error(t, err)
	assert.True(t, errs.IsParse(err))
	assert.Contains(t, err.Error(), "DOWN")

	_, err = Parse("Surname ASC extra")
	assert.True(t, errs.IsParse(err))

	_, err = Parse("Surname,,FirstName")
	assert.True(t, errs.IsParse(err))
}

func TestStringRoundTrip(t *testing.T) {
	c := New().Add("Surname").Add("FirstName", Descending).Add("Car.Owner.Surname")
	assert.Equal(t, "Surname ASC, FirstName DESC, Car.Owner.Surname ASC", c.String())

	parsed, err := Parse(c.String())
	require.NoError(t, err)
	assert.True(t, c.Equal(parsed))
	assert.Equal(t, c.String(), parsed.String())
}

func TestCompareMultipleFields(t *testing.T) {
	c := MustParse("Surname, Age DESC")

	a := person("Adams", 30)
	b := person("Adams", 40)
	z := person("Zulu", 10)

	assert.Equal(t, 1, c.Compare(a, b), "same surname, older first when descending")
	assert.Equal(t, -1, c.Compare(b, a))
	assert.Equal(t, -1, c.Compare(a, z))
	assert.Equal(t, 0, c.Compare(a, person("Adams", 30)))
}

func TestCompareThroughRelationships(t *testing.T) {
	owner := func(surname string) *node { return person(surname, 0) }
	engine := func(o *node) *node {
		car := &node{props: map[string]any{}, rels: map[string]*node{"Owner": o}}
		return &node{props: map[string]any{}, rels: map[string]*node{"Car": car}}
	}

	e1 := engine(owner("Smith"))
	e2 := engine(owner("Brown"))
	e3 := &node{props: map[string]any{}}

	c := MustParse("Car.Owner.Surname")
	engines := []any{e1, e2, e3}
	slices.SortStableFunc(engines, c.Comparer())

	assert.Same(t, e3, engines[0], "unresolvable path sorts first")
	assert.Same(t, e2, engines[1])
	assert.Same(t, e1, engines[2])
}

func TestCompareValueKinds(t *testing.T) {
	now := time.Now()
	assert.Equal(t, -1, compareValues(nil, "a"))
	assert.Equal(t, 1, compareValues(int64(5), 4))
	assert.Equal(t, 0, compareValues(uint8(3), 3.0))
	assert.Equal(t, -1, compareValues(now, now.Add(time.Second)))
	assert.Equal(t, -1, compareValues(false, true))
	s := "b"
	assert.Equal(t, 1, compareValues(&s, "a"))
}
