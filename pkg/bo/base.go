// Package bo provides the business object model tracked by collections:
// class metadata, identity keys, status flags, lifecycle events and the
// embeddable Base that concrete domain types build on.
//
// A domain type embeds Base and initialises it in its constructor:
//
//	type ContactPerson struct{ bo.Base }
//
//	func NewContactPerson() *ContactPerson {
//		cp := &ContactPerson{}
//		cp.Init(cp, ContactPersonDef)
//		return cp
//	}
package bo

import (
	"reflect"

	"github.com/oklog/ulid/v2"

	"github.com/ammar0144/bo4go/pkg/errs"
)

// BusinessObject is implemented by every type embedding Base
type BusinessObject interface {
	Core() *Base
}

// Status is a snapshot of an object's lifecycle flags
type Status struct {
	// IsNew is true until the object has been inserted, and again after its
	// deletion has been persisted
	IsNew bool

	// IsDirty is true when properties changed since the last load or save,
	// when the object is marked for delete, or when one of its relationships
	// has pending structural or child changes
	IsDirty bool

	// IsDeleted is true once the object is marked for delete
	IsDeleted bool
}

// Relationship is the object-side slot of a relationship. Collections
// register one per relationship on the owning object.
type Relationship interface {
	RelationshipName() string

	// IsDirty reports pending changes that must be saved with the owner
	IsDirty() bool

	// PendingChildren returns the related objects to persist with the owner
	PendingChildren() []BusinessObject

	// CheckOwnerDelete fails when the owner may not be deleted
	CheckOwnerDelete() error

	// CascadeOwnerDelete applies the delete action to the related objects
	CascadeOwnerDelete() error

	// CancelEdits discards pending structural changes
	CancelEdits()
}

// SingleRelationship is a Relationship that navigates to one object
type SingleRelationship interface {
	Relationship
	RelatedObject() (BusinessObject, error)
}

// Guard observes property writes. BeforeSet may veto the write; AfterSet
// runs once the value is stored and before events fire. An AfterSet error is
// returned by SetPropertyValue but does not undo the write.
type Guard interface {
	BeforeSet(obj BusinessObject, prop string, oldValue, newValue any) error
	AfterSet(obj BusinessObject, prop string, oldValue, newValue any) error
}

// Base holds the state shared by all business objects
type Base struct {
	self BusinessObject
	def  *ClassDef

	values    Row
	initial   Row
	persisted Row

	isNew      bool
	isDeleted  bool
	propsDirty bool
	prevKey    Key

	events        hub
	guards        []Guard
	relationships []Relationship
}

// Init prepares a new object of class def. self is the embedding object and
// is reported as the source of every event.
func (b *Base) Init(self BusinessObject, def *ClassDef) {
	b.self = self
	b.def = def
	b.values = make(Row, len(def.Properties))
	for _, p := range def.Properties {
		b.values[p.Name] = p.Default
		if p.AutoKey {
			b.values[p.Name] = ulid.Make().String()
		}
	}
	b.initial = b.values.Clone()
	b.isNew = true
}

// Core implements BusinessObject
func (b *Base) Core() *Base {
	return b
}

// Self returns the embedding object
func (b *Base) Self() BusinessObject {
	return b.self
}

// ClassDef returns the class metadata
func (b *Base) ClassDef() *ClassDef {
	return b.def
}

// Key returns the current identity
func (b *Base) Key() Key {
	return KeyOf(b.def, b.values)
}

// PreviousKey returns the identity held before the last identity change, or
// an empty key when the identity never changed
func (b *Base) PreviousKey() Key {
	return b.prevKey
}

// Status returns the lifecycle flags
func (b *Base) Status() Status {
	return Status{
		IsNew:     b.isNew,
		IsDirty:   b.propsDirty || b.isDeleted || b.relationshipsDirty(),
		IsDeleted: b.isDeleted,
	}
}

// PropertiesDirty reports whether any property differs from its value as of
// the last load or save, or from its initial value for new objects
func (b *Base) PropertiesDirty() bool {
	return b.propsDirty
}

func (b *Base) relationshipsDirty() bool {
	for _, r := range b.relationships {
		if r.IsDirty() {
			return true
		}
	}
	return false
}

// PropertyValue implements order.PropertyReader
func (b *Base) PropertyValue(name string) (any, error) {
	if _, ok := b.def.Property(name); !ok {
		return nil, errs.Developer(b.def.ClassName, "", "get_property", "property %s is not defined on %s", name, b.def.ClassName)
	}
	return b.values[name], nil
}

// Value returns the property value, or nil for unknown properties
func (b *Base) Value(name string) any {
	return b.values[name]
}

// SetPropertyValue changes a property. Guards run first and may veto the
// change; EventPropertyUpdated and, for identity properties, EventIDUpdated
// fire afterwards. Setting an equal value is a no-op.
func (b *Base) SetPropertyValue(name string, value any) error {
	if _, ok := b.def.Property(name); !ok {
		return errs.Developer(b.def.ClassName, "", "set_property", "property %s is not defined on %s", name, b.def.ClassName)
	}
	old := b.values[name]
	if reflect.DeepEqual(old, value) {
		return nil
	}

	for _, g := range b.snapshotGuards() {
		if err := g.BeforeSet(b.self, name, old, value); err != nil {
			return err
		}
	}

	oldKey := b.Key()
	b.values[name] = value
	b.propsDirty = !reflect.DeepEqual(b.values, b.baseline())

	var afterErr error
	for _, g := range b.snapshotGuards() {
		if err := g.AfterSet(b.self, name, old, value); err != nil && afterErr == nil {
			afterErr = err
		}
	}

	b.events.fire(Event{Type: EventPropertyUpdated, Object: b.self, Property: name, OldValue: old, NewValue: value})
	if b.def.IsKeyProperty(name) {
		b.prevKey = oldKey
		b.events.fire(Event{Type: EventIDUpdated, Object: b.self, PreviousKey: oldKey})
	}
	return afterErr
}

func (b *Base) snapshotGuards() []Guard {
	out := make([]Guard, len(b.guards))
	copy(out, b.guards)
	return out
}

// baseline is the row edits are measured against
func (b *Base) baseline() Row {
	if b.persisted != nil {
		return b.persisted
	}
	return b.initial
}

// Load replaces the property values with a stored row and marks the object
// as persisted and clean. No events fire.
func (b *Base) Load(row Row) {
	for _, p := range b.def.Properties {
		if v, ok := row[p.Name]; ok {
			b.values[p.Name] = v
		}
	}
	b.persisted = b.values.Clone()
	b.isNew = false
	b.isDeleted = false
	b.propsDirty = false
	b.prevKey = ""
}

// Row returns a copy of the current property values
func (b *Base) Row() Row {
	return b.values.Clone()
}

// PersistedRow returns a copy of the values as last loaded or saved, or nil
// for objects that were never persisted
func (b *Base) PersistedRow() Row {
	return b.persisted.Clone()
}

// PersistedKey returns the identity as last loaded or saved
func (b *Base) PersistedKey() Row {
	if b.persisted == nil {
		return nil
	}
	return b.persisted.Pick(b.def.PrimaryKey...)
}

// MarkForDelete flags the object for deletion on the next save. Owner delete
// rules of every relationship are checked before anything changes; the
// delete actions are then applied to the related objects.
func (b *Base) MarkForDelete() error {
	if b.isDeleted {
		return nil
	}
	if b.isNew {
		return errs.Developer(b.def.ClassName, "", "mark_for_delete",
			"the %s identified by %s could not be marked for delete since it has never been persisted, remove it instead",
			b.def.ClassName, b.Key())
	}
	for _, r := range b.relationships {
		if err := r.CheckOwnerDelete(); err != nil {
			return err
		}
	}
	for _, r := range b.relationships {
		if err := r.CascadeOwnerDelete(); err != nil {
			return err
		}
	}
	b.isDeleted = true
	b.events.fire(Event{Type: EventMarkedForDelete, Object: b.self})
	return nil
}

// CancelEdits restores the persisted values (or the initial values of a new
// object), undeletes the object and discards pending relationship changes.
func (b *Base) CancelEdits() {
	oldKey := b.Key()
	if b.persisted != nil {
		b.values = b.persisted.Clone()
	} else {
		b.values = b.initial.Clone()
	}
	b.isDeleted = false
	b.propsDirty = false

	for _, r := range b.relationships {
		r.CancelEdits()
	}

	if newKey := b.Key(); newKey != oldKey {
		b.prevKey = oldKey
		b.events.fire(Event{Type: EventIDUpdated, Object: b.self, PreviousKey: oldKey})
	}
	b.events.fire(Event{Type: EventRestored, Object: b.self})
}

// MarkPersisted records a successful write. A deleted object becomes new
// again and fires EventDeleted; any other object becomes clean and fires
// EventSaved.
func (b *Base) MarkPersisted() {
	if b.isDeleted {
		b.isNew = true
		b.persisted = nil
		b.propsDirty = false
		b.events.fire(Event{Type: EventDeleted, Object: b.self})
		return
	}
	b.isNew = false
	b.persisted = b.values.Clone()
	b.propsDirty = false
	b.prevKey = ""
	b.events.fire(Event{Type: EventSaved, Object: b.self})
}

// Subscribe registers an event handler
func (b *Base) Subscribe(h Handler) Subscription {
	return b.events.subscribe(h)
}

// Unsubscribe removes an event handler
func (b *Base) Unsubscribe(s Subscription) {
	b.events.unsubscribe(s)
}

// SubscriberCount returns the number of registered handlers
func (b *Base) SubscriberCount() int {
	return b.events.count()
}

// AddGuard registers a property write guard
func (b *Base) AddGuard(g Guard) {
	b.guards = append(b.guards, g)
}

// AddRelationship registers a relationship slot
func (b *Base) AddRelationship(r Relationship) {
	b.relationships = append(b.relationships, r)
}

// Relationship returns the slot registered under name
func (b *Base) Relationship(name string) (Relationship, bool) {
	for _, r := range b.relationships {
		if r.RelationshipName() == name {
			return r, true
		}
	}
	return nil, false
}

// Relationships returns the registered slots in registration order
func (b *Base) Relationships() []Relationship {
	out := make([]Relationship, len(b.relationships))
	copy(out, b.relationships)
	return out
}

// RelatedObject implements order.Navigator for single relationships
func (b *Base) RelatedObject(name string) (any, error) {
	r, ok := b.Relationship(name)
	if !ok {
		return nil, errs.Developer(b.def.ClassName, name, "navigate", "relationship %s is not defined on %s", name, b.def.ClassName)
	}
	single, ok := r.(SingleRelationship)
	if !ok {
		return nil, errs.Developer(b.def.ClassName, name, "navigate", "relationship %s on %s does not refer to a single object", name, b.def.ClassName)
	}
	obj, err := single.RelatedObject()
	if err != nil || obj == nil {
		return nil, err
	}
	return obj, nil
}
