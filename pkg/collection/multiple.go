package collection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/relationship"
)

// member is the type-erased view of a related collection used from the child
// side, where the child's concrete collection type is unknown
type member interface {
	attach(obj bo.BusinessObject) error
	detach(obj bo.BusinessObject, mode detachMode) error
	release(obj bo.BusinessObject) error
	reclaim(obj bo.BusinessObject)
	holds(obj bo.BusinessObject) bool
	checkDetach(obj bo.BusinessObject) error
	log() *zap.Logger
}

// MultipleRelationship is the owner side of a one-to-many relationship. It is
// registered on the owner under the relationship name and holds the related
// collection.
type MultipleRelationship[T bo.BusinessObject] struct {
	def    *relationship.Def
	owner  bo.BusinessObject
	coll   *RelatedCollection[T]
	logger *zap.Logger
}

var (
	_ bo.Relationship = (*MultipleRelationship[bo.BusinessObject])(nil)
	_ bo.Guard        = (*MultipleRelationship[bo.BusinessObject])(nil)
)

// NewMultipleRelationship creates the relationship and registers it on owner
func NewMultipleRelationship[T bo.BusinessObject](owner bo.BusinessObject, def *relationship.Def, opts Options[T]) *MultipleRelationship[T] {
	m := &MultipleRelationship[T]{def: def, owner: owner, logger: opts.Logger}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.coll = newRelatedCollection(m, opts)
	owner.Core().AddRelationship(m)
	owner.Core().AddGuard(m)
	owner.Core().Subscribe(m.onOwnerEvent)
	return m
}

// RelationshipName implements bo.Relationship
func (m *MultipleRelationship[T]) RelationshipName() string {
	return m.def.Name
}

// Def returns the relationship metadata
func (m *MultipleRelationship[T]) Def() *relationship.Def {
	return m.def
}

// Owner returns the owning object
func (m *MultipleRelationship[T]) Owner() bo.BusinessObject {
	return m.owner
}

// Collection returns the related collection without loading it
func (m *MultipleRelationship[T]) Collection() *RelatedCollection[T] {
	return m.coll
}

// Load loads the related objects on first use and returns the collection.
// No query runs for a new owner or without a store.
func (m *MultipleRelationship[T]) Load(ctx context.Context) (*RelatedCollection[T], error) {
	if m.coll.loaded {
		return m.coll, nil
	}
	if m.owner.Core().Status().IsNew || m.coll.store == nil {
		m.coll.loaded = true
		m.coll.lastLoaded = m.coll.now()
		return m.coll, nil
	}
	if err := m.coll.Load(ctx, m.def.Criteria(m.owner), m.def.OrderBy); err != nil {
		return nil, err
	}
	return m.coll, nil
}

// IsDirty implements bo.Relationship
func (m *MultipleRelationship[T]) IsDirty() bool {
	return m.coll.IsDirty()
}

// PendingChildren implements bo.Relationship
func (m *MultipleRelationship[T]) PendingChildren() []bo.BusinessObject {
	return m.coll.pendingChildren()
}

// CheckOwnerDelete implements bo.Relationship. With DeleteRelated the rules
// of the children are checked as well, since they are deleted in turn. The
// collection is loaded first when it has not been.
func (m *MultipleRelationship[T]) CheckOwnerDelete() error {
	if m.def.DeleteAction() != relationship.DeleteParentDoNothing {
		if _, err := m.Load(context.Background()); err != nil {
			return err
		}
	}
	if err := relationship.CheckOwnerDelete(m.def, m.owner, m.coll.Count()); err != nil {
		return err
	}
	if m.def.DeleteAction() != relationship.DeleteRelated {
		return nil
	}
	for _, child := range m.coll.current.items {
		if child.Core().Status().IsNew {
			continue
		}
		for _, r := range child.Core().Relationships() {
			if err := r.CheckOwnerDelete(); err != nil {
				return err
			}
		}
	}
	return nil
}

// CascadeOwnerDelete implements bo.Relationship
func (m *MultipleRelationship[T]) CascadeOwnerDelete() error {
	switch m.def.DeleteAction() {
	case relationship.DeleteRelated:
		for _, child := range m.coll.current.slice() {
			if child.Core().Status().IsNew {
				if err := m.coll.removeOne(child, detachKeep, false); err != nil {
					return err
				}
				continue
			}
			if err := child.Core().MarkForDelete(); err != nil {
				return err
			}
		}
	case relationship.DereferenceRelated:
		for _, child := range m.coll.current.slice() {
			if err := m.coll.removeOne(child, detachDereference, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// CancelEdits implements bo.Relationship
func (m *MultipleRelationship[T]) CancelEdits() {
	if err := m.coll.RestoreAll(); err != nil {
		m.logger.Warn("restoring related objects failed",
			zap.String("relationship", m.def.Name),
			zap.String("owner", string(m.owner.Core().Key())),
			zap.Error(err))
	}
}

// BeforeSet implements bo.Guard
func (m *MultipleRelationship[T]) BeforeSet(bo.BusinessObject, string, any, any) error {
	return nil
}

// AfterSet implements bo.Guard. A change of the owner's key is copied into
// the foreign key of every current member; the failures are returned to the
// caller that changed the key.
func (m *MultipleRelationship[T]) AfterSet(_ bo.BusinessObject, prop string, _, _ any) error {
	if !m.def.IsOwnerKey(prop) {
		return nil
	}
	var errList []error
	for _, child := range m.coll.current.slice() {
		if err := m.link(child); err != nil {
			errList = append(errList, fmt.Errorf("updating the foreign key of %s %s: %w",
				m.def.RelatedClass, child.Core().Key(), err))
		}
	}
	return errors.Join(errList...)
}

func (m *MultipleRelationship[T]) onOwnerEvent(e bo.Event) {
	if e.Type == bo.EventSaved {
		m.coll.settleRemoved()
	}
}

// link points obj's foreign key and owner reference at the owner
func (m *MultipleRelationship[T]) link(obj T) error {
	single := m.singleOf(obj)
	if err := m.writeForeignKey(obj, single, m.def.ForeignKey(m.owner)); err != nil {
		return err
	}
	if single != nil {
		single.owner = m.owner
	}
	return nil
}

// unlink clears obj's foreign key and owner reference
func (m *MultipleRelationship[T]) unlink(obj T) error {
	single := m.singleOf(obj)
	cleared := make(bo.Row, len(m.def.Keys))
	for _, k := range m.def.Keys {
		cleared[k.RelatedProperty] = nil
	}
	if err := m.writeForeignKey(obj, single, cleared); err != nil {
		return err
	}
	if single != nil {
		single.owner = nil
	}
	return nil
}

// revertLink restores obj's persisted foreign key and returns it to the
// owner it was taken from when that owner still tracks it
func (m *MultipleRelationship[T]) revertLink(obj T) error {
	single := m.singleOf(obj)
	persisted := obj.Core().PersistedRow()
	fk := make(bo.Row, len(m.def.Keys))
	for _, k := range m.def.Keys {
		fk[k.RelatedProperty] = persisted[k.RelatedProperty]
	}
	if err := m.writeForeignKey(obj, single, fk); err != nil {
		return err
	}
	if single != nil {
		single.owner = nil
		single.reclaimPrevious()
	}
	return nil
}

func (m *MultipleRelationship[T]) writeForeignKey(obj T, single *SingleRelationship, fk bo.Row) error {
	if single != nil {
		single.syncing++
		defer func() { single.syncing-- }()
	}
	for _, k := range m.def.Keys {
		if err := obj.Core().SetPropertyValue(k.RelatedProperty, fk[k.RelatedProperty]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultipleRelationship[T]) singleOf(obj bo.BusinessObject) *SingleRelationship {
	if m.def.ReverseName == "" {
		return nil
	}
	r, ok := obj.Core().Relationship(m.def.ReverseName)
	if !ok {
		return nil
	}
	single, _ := r.(*SingleRelationship)
	return single
}

func (m *MultipleRelationship[T]) typed(obj bo.BusinessObject, op string) (T, error) {
	t, ok := obj.(T)
	if !ok {
		var zero T
		return zero, errs.Configuration(m.def.RelatedClass, op,
			"the '%s' relationship of %s cannot hold a %T", m.def.Name, m.def.OwnerClass, obj)
	}
	return t, nil
}

func (m *MultipleRelationship[T]) attach(obj bo.BusinessObject) error {
	t, err := m.typed(obj, "add")
	if err != nil {
		return err
	}
	return m.coll.addOne(t)
}

func (m *MultipleRelationship[T]) detach(obj bo.BusinessObject, mode detachMode) error {
	t, err := m.typed(obj, "remove")
	if err != nil {
		return err
	}
	return m.coll.removeOne(t, mode, true)
}

func (m *MultipleRelationship[T]) release(obj bo.BusinessObject) error {
	t, err := m.typed(obj, "remove")
	if err != nil {
		return err
	}
	return m.coll.removeOne(t, detachKeep, false)
}

func (m *MultipleRelationship[T]) reclaim(obj bo.BusinessObject) {
	if t, ok := obj.(T); ok {
		m.coll.reclaim(t)
	}
}

func (m *MultipleRelationship[T]) log() *zap.Logger {
	return m.logger
}

func (m *MultipleRelationship[T]) holds(obj bo.BusinessObject) bool {
	t, ok := obj.(T)
	return ok && m.coll.current.has(t)
}

func (m *MultipleRelationship[T]) checkDetach(obj bo.BusinessObject) error {
	if !m.holds(obj) {
		return nil
	}
	return relationship.CheckRemove(m.def, obj)
}

// memberOf returns the related collection registered as name on owner
func memberOf(owner bo.BusinessObject, name string) member {
	if relationship.IsNil(owner) {
		return nil
	}
	r, ok := owner.Core().Relationship(name)
	if !ok {
		return nil
	}
	m, _ := r.(member)
	return m
}
