// Package relationship describes how two business object classes relate and
// decides which structural changes a relationship allows.
//
// The checks in this package are pure: they inspect the definition and the
// objects involved and return a developer error when the change is not
// permitted. Applying the change is the caller's job.
package relationship

import (
	"fmt"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/criteria"
)

// Type is the ownership semantics of a relationship
type Type int

const (
	// Association links objects with independent lifetimes
	Association Type = iota
	// Aggregation links owned children that may move to another owner
	Aggregation
	// Composition links owned children bound to their owner for life
	Composition
)

func (t Type) String() string {
	switch t {
	case Aggregation:
		return "Aggregation"
	case Composition:
		return "Composition"
	default:
		return "Association"
	}
}

// DeleteParentAction governs related objects when the owner is deleted
type DeleteParentAction int

const (
	// DeleteParentDefault resolves to DereferenceRelated for associations
	// and DeleteRelated otherwise
	DeleteParentDefault DeleteParentAction = iota
	DeleteParentPrevent
	DeleteRelated
	DereferenceRelated
	DeleteParentDoNothing
)

func (a DeleteParentAction) String() string {
	switch a {
	case DeleteParentPrevent:
		return "DeleteParentAction.Prevent"
	case DeleteRelated:
		return "DeleteParentAction.DeleteRelated"
	case DereferenceRelated:
		return "DeleteParentAction.DereferenceRelated"
	case DeleteParentDoNothing:
		return "DeleteParentAction.DoNothing"
	default:
		return "DeleteParentAction.Default"
	}
}

// RemoveChildAction governs a persisted child removed from the relationship
type RemoveChildAction int

const (
	// RemoveChildDefault resolves to RemoveChildPrevent for compositions and
	// RemoveChildDereference otherwise
	RemoveChildDefault RemoveChildAction = iota
	RemoveChildPrevent
	RemoveChildDereference
	RemoveChildDoNothing
)

func (a RemoveChildAction) String() string {
	switch a {
	case RemoveChildPrevent:
		return "RemoveChildAction.Prevent"
	case RemoveChildDereference:
		return "RemoveChildAction.Dereference"
	case RemoveChildDoNothing:
		return "RemoveChildAction.DoNothing"
	default:
		return "RemoveChildAction.Default"
	}
}

// AddChildAction governs adding an already persisted child
type AddChildAction int

const (
	AddChildAllow AddChildAction = iota
	AddChildPrevent
)

func (a AddChildAction) String() string {
	if a == AddChildPrevent {
		return "AddChildAction.Prevent"
	}
	return "AddChildAction.Allow"
}

// KeyPair maps an owner property to the related object's foreign key
type KeyPair struct {
	OwnerProperty   string
	RelatedProperty string
}

// Def is the metadata of a one-to-many relationship seen from the owner
type Def struct {
	// Name of the multiple side, registered on the owner ("Addresses")
	Name string

	// ReverseName of the single side, registered on the child ("ContactPerson")
	ReverseName string

	Type         Type
	OwnerClass   string
	RelatedClass string
	Keys         []KeyPair

	// OrderBy is the order criteria string used when loading the related
	// objects ("Surname ASC")
	OrderBy string

	DeleteParentAction DeleteParentAction
	RemoveChildAction  RemoveChildAction
	AddChildAction     AddChildAction
}

// Validate checks the definition is usable
func (d *Def) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("relationship name is required")
	}
	if len(d.Keys) == 0 {
		return fmt.Errorf("relationship %s has no key pairs", d.Name)
	}
	for _, k := range d.Keys {
		if k.OwnerProperty == "" || k.RelatedProperty == "" {
			return fmt.Errorf("relationship %s has an incomplete key pair", d.Name)
		}
	}
	return nil
}

// DeleteAction returns the effective DeleteParentAction
func (d *Def) DeleteAction() DeleteParentAction {
	if d.DeleteParentAction != DeleteParentDefault {
		return d.DeleteParentAction
	}
	if d.Type == Association {
		return DereferenceRelated
	}
	return DeleteRelated
}

// RemoveAction returns the effective RemoveChildAction
func (d *Def) RemoveAction() RemoveChildAction {
	if d.RemoveChildAction != RemoveChildDefault {
		return d.RemoveChildAction
	}
	if d.Type == Composition {
		return RemoveChildPrevent
	}
	return RemoveChildDereference
}

// ForeignKey returns the child property values that point at owner
func (d *Def) ForeignKey(owner bo.BusinessObject) bo.Row {
	row := make(bo.Row, len(d.Keys))
	for _, k := range d.Keys {
		row[k.RelatedProperty] = owner.Core().Value(k.OwnerProperty)
	}
	return row
}

// IsChildOf reports whether child's foreign key points at owner
func (d *Def) IsChildOf(owner, child bo.BusinessObject) bool {
	if IsNil(owner) || IsNil(child) {
		return false
	}
	for _, k := range d.Keys {
		ov := owner.Core().Value(k.OwnerProperty)
		cv := child.Core().Value(k.RelatedProperty)
		if ov == nil || cv == nil || fmt.Sprint(ov) != fmt.Sprint(cv) {
			return false
		}
	}
	return true
}

// IsForeignKey reports whether prop is a foreign key property of the child
func (d *Def) IsForeignKey(prop string) bool {
	for _, k := range d.Keys {
		if k.RelatedProperty == prop {
			return true
		}
	}
	return false
}

// IsOwnerKey reports whether prop is an owner property referenced by the
// foreign key
func (d *Def) IsOwnerKey(prop string) bool {
	for _, k := range d.Keys {
		if k.OwnerProperty == prop {
			return true
		}
	}
	return false
}

// Criteria returns the criteria selecting owner's related rows
func (d *Def) Criteria(owner bo.BusinessObject) *criteria.Criteria {
	var items []*criteria.Criteria
	for _, k := range d.Keys {
		items = append(items, criteria.Eq(k.RelatedProperty, owner.Core().Value(k.OwnerProperty)))
	}
	return criteria.AllOf(items...)
}
