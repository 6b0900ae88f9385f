package bo

import (
	"fmt"
	"slices"
)

// PropDef describes one persisted property of a business object class
type PropDef struct {
	// Name is the property name used in code, criteria and order strings
	Name string

	// Column is the storage column; defaults to Name
	Column string

	// AutoKey properties receive a fresh ULID when a new object is created
	AutoKey bool

	// Default is the initial value of new objects
	Default any
}

// ClassDef is the metadata of a business object class
type ClassDef struct {
	ClassName  string
	TableName  string
	Properties []PropDef

	// PrimaryKey lists the identity properties; more than one makes a
	// composite identity
	PrimaryKey []string
}

// Validate checks the definition is usable
func (d *ClassDef) Validate() error {
	if d == nil {
		return fmt.Errorf("class definition is nil")
	}
	if d.ClassName == "" {
		return fmt.Errorf("class name is required")
	}
	if len(d.PrimaryKey) == 0 {
		return fmt.Errorf("class %s has no primary key", d.ClassName)
	}
	for _, pk := range d.PrimaryKey {
		if _, ok := d.Property(pk); !ok {
			return fmt.Errorf("primary key property %s is not defined on class %s", pk, d.ClassName)
		}
	}
	return nil
}

// Property looks up a property definition by name
func (d *ClassDef) Property(name string) (PropDef, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropDef{}, false
}

// PropertyNames returns the property names in declaration order
func (d *ClassDef) PropertyNames() []string {
	names := make([]string, len(d.Properties))
	for i, p := range d.Properties {
		names[i] = p.Name
	}
	return names
}

// ColumnName returns the storage column of a property
func (d *ClassDef) ColumnName(name string) string {
	if p, ok := d.Property(name); ok && p.Column != "" {
		return p.Column
	}
	return name
}

// Table returns the storage table; defaults to the class name
func (d *ClassDef) Table() string {
	if d.TableName != "" {
		return d.TableName
	}
	return d.ClassName
}

// IsKeyProperty reports whether name participates in the identity
func (d *ClassDef) IsKeyProperty(name string) bool {
	return slices.Contains(d.PrimaryKey, name)
}
