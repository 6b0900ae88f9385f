package collection

import (
	"go.uber.org/zap"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/relationship"
)

// Resolver finds the owner a foreign key points at. It returns nil when no
// such owner is known.
type Resolver func(fk bo.Row) (bo.BusinessObject, error)

// SingleRelationship is the child side of a one-to-many relationship. It is
// registered on the child under the relationship's reverse name and keeps the
// owner's related collection in step when the child's owner changes, whether
// through SetRelatedObject or by writing the foreign key directly.
type SingleRelationship struct {
	def       *relationship.Def
	child     bo.BusinessObject
	owner     bo.BusinessObject
	prevOwner bo.BusinessObject
	resolver  Resolver

	// syncing is non-zero while the relationship itself writes the foreign key
	syncing int
}

var (
	_ bo.SingleRelationship = (*SingleRelationship)(nil)
	_ bo.Guard              = (*SingleRelationship)(nil)
)

// NewSingleRelationship registers the child side of def on child. resolver
// may be nil, in which case the owner is only known once the child has been
// loaded into or added to an owner's collection.
func NewSingleRelationship(child bo.BusinessObject, def *relationship.Def, resolver Resolver) *SingleRelationship {
	s := &SingleRelationship{def: def, child: child, resolver: resolver}
	child.Core().AddRelationship(s)
	child.Core().AddGuard(s)
	return s
}

// RelationshipName implements bo.Relationship
func (s *SingleRelationship) RelationshipName() string {
	return s.def.ReverseName
}

// Def returns the relationship metadata
func (s *SingleRelationship) Def() *relationship.Def {
	return s.def
}

// IsDirty implements bo.Relationship; the foreign key carries the change
func (s *SingleRelationship) IsDirty() bool { return false }

// PendingChildren implements bo.Relationship
func (s *SingleRelationship) PendingChildren() []bo.BusinessObject { return nil }

// CheckOwnerDelete implements bo.Relationship
func (s *SingleRelationship) CheckOwnerDelete() error { return nil }

// CascadeOwnerDelete implements bo.Relationship
func (s *SingleRelationship) CascadeOwnerDelete() error { return nil }

// CancelEdits implements bo.Relationship. The child's foreign key has already
// been restored, so membership follows it back.
func (s *SingleRelationship) CancelEdits() {
	if s.owner != nil && !s.def.IsChildOf(s.owner, s.child) {
		if m := memberOf(s.owner, s.def.Name); m != nil && m.holds(s.child) {
			if err := m.release(s.child); err != nil {
				m.log().Warn("releasing restored child failed",
					zap.String("relationship", s.def.Name),
					zap.String("child", string(s.child.Core().Key())),
					zap.Error(err))
			}
		}
		s.owner = nil
	}
	s.reclaimPrevious()
}

// RelatedObject returns the owner, resolving it from the foreign key when
// it is not known yet
func (s *SingleRelationship) RelatedObject() (bo.BusinessObject, error) {
	if s.owner != nil {
		return s.owner, nil
	}
	owner, err := s.resolve(s.foreignKey())
	if err != nil {
		return nil, err
	}
	s.owner = owner
	return owner, nil
}

// SetRelatedObject moves the child to newOwner, or detaches it when newOwner
// is nil. The owners' collections apply the same rules and raise the same
// events as their Add and Remove.
func (s *SingleRelationship) SetRelatedObject(newOwner bo.BusinessObject) error {
	if relationship.IsNil(newOwner) {
		newOwner = nil
	}
	cur, err := s.RelatedObject()
	if err != nil {
		return err
	}
	if sameObject(cur, newOwner) {
		return nil
	}
	if cur != nil {
		if err := relationship.CheckReparent(s.def, s.child, newOwner); err != nil {
			return err
		}
	}

	if newOwner == nil {
		if m := memberOf(cur, s.def.Name); m != nil && m.holds(s.child) {
			return m.detach(s.child, detachDereference)
		}
		s.prevOwner = cur
		s.owner = nil
		return s.writeForeignKey(nil)
	}

	if m := memberOf(newOwner, s.def.Name); m != nil {
		return m.attach(s.child)
	}
	if err := relationship.CheckAdd(s.def, s.child); err != nil {
		return err
	}
	if cur != nil {
		if m := memberOf(cur, s.def.Name); m != nil && m.holds(s.child) {
			if err := m.checkDetach(s.child); err != nil {
				return err
			}
			if err := m.release(s.child); err != nil {
				return err
			}
		}
		s.prevOwner = cur
	}
	if err := s.writeForeignKey(s.def.ForeignKey(newOwner)); err != nil {
		return err
	}
	s.owner = newOwner
	return nil
}

// BeforeSet implements bo.Guard. A direct foreign key change is checked as
// a removal from the current owner and an add to the prospective one.
func (s *SingleRelationship) BeforeSet(_ bo.BusinessObject, prop string, _, newValue any) error {
	if s.syncing > 0 || !s.def.IsForeignKey(prop) {
		return nil
	}
	cur, err := s.RelatedObject()
	if err != nil {
		return err
	}
	if cur != nil {
		if err := relationship.CheckReparent(s.def, s.child, nil); err != nil {
			return err
		}
		if m := memberOf(cur, s.def.Name); m != nil {
			if err := m.checkDetach(s.child); err != nil {
				return err
			}
		}
	}
	fk := s.foreignKey()
	fk[prop] = newValue
	next, err := s.resolve(fk)
	if err != nil || next == nil {
		return err
	}
	return relationship.CheckAdd(s.def, s.child)
}

// AfterSet implements bo.Guard. The child leaves the collection of an owner
// its foreign key no longer points at and joins the collection of the owner
// it now points at.
func (s *SingleRelationship) AfterSet(_ bo.BusinessObject, prop string, _, _ any) error {
	if s.syncing > 0 || !s.def.IsForeignKey(prop) {
		return nil
	}
	if cur := s.owner; cur != nil && !s.def.IsChildOf(cur, s.child) {
		if m := memberOf(cur, s.def.Name); m != nil && m.holds(s.child) {
			if err := m.release(s.child); err != nil {
				return err
			}
		}
		s.prevOwner = cur
		s.owner = nil
	}
	next, err := s.resolve(s.foreignKey())
	if err != nil || next == nil {
		return err
	}
	if m := memberOf(next, s.def.Name); m != nil {
		return m.attach(s.child)
	}
	s.owner = next
	return nil
}

// reclaimPrevious returns the child to the owner it was last taken from when
// the foreign key points at that owner again
func (s *SingleRelationship) reclaimPrevious() {
	prev := s.prevOwner
	if prev == nil || !s.def.IsChildOf(prev, s.child) {
		return
	}
	s.prevOwner = nil
	s.owner = prev
	if m := memberOf(prev, s.def.Name); m != nil {
		m.reclaim(s.child)
	}
}

func (s *SingleRelationship) foreignKey() bo.Row {
	fk := make(bo.Row, len(s.def.Keys))
	for _, k := range s.def.Keys {
		fk[k.RelatedProperty] = s.child.Core().Value(k.RelatedProperty)
	}
	return fk
}

func (s *SingleRelationship) resolve(fk bo.Row) (bo.BusinessObject, error) {
	if s.resolver == nil {
		return nil, nil
	}
	for _, v := range fk {
		if v == nil {
			return nil, nil
		}
	}
	owner, err := s.resolver(fk)
	if err != nil || relationship.IsNil(owner) {
		return nil, err
	}
	return owner, nil
}

// writeForeignKey sets the foreign key to fk; a nil fk clears it
func (s *SingleRelationship) writeForeignKey(fk bo.Row) error {
	s.syncing++
	defer func() { s.syncing-- }()
	for _, k := range s.def.Keys {
		if err := s.child.Core().SetPropertyValue(k.RelatedProperty, fk[k.RelatedProperty]); err != nil {
			return err
		}
	}
	return nil
}

func sameObject(a, b bo.BusinessObject) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Core() == b.Core()
}
