package collection

import (
	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/relationship"
)

// RelatedCollection is the collection of objects related to one owner. Every
// membership change is checked against the relationship rules and keeps the
// child's foreign key and owner reference in step with membership.
type RelatedCollection[T bo.BusinessObject] struct {
	*Collection[T]
	rel *MultipleRelationship[T]
}

func newRelatedCollection[T bo.BusinessObject](rel *MultipleRelationship[T], opts Options[T]) *RelatedCollection[T] {
	rc := &RelatedCollection[T]{Collection: &Collection[T]{}, rel: rel}
	rc.init(opts)
	rc.sender = rc
	rc.relName = rel.def.Name
	rc.hooks = rc
	return rc
}

// Relationship returns the relationship the collection belongs to
func (rc *RelatedCollection[T]) Relationship() *MultipleRelationship[T] {
	return rc.rel
}

// Owner returns the owning object
func (rc *RelatedCollection[T]) Owner() bo.BusinessObject {
	return rc.rel.owner
}

// IsDirty reports pending structural changes, or for aggregations and
// compositions any dirty member
func (rc *RelatedCollection[T]) IsDirty() bool {
	if rc.created.len()+rc.added.len()+rc.removed.len()+rc.markedForDelete.len() > 0 {
		return true
	}
	if rc.rel.def.Type == relationship.Association {
		return false
	}
	for _, obj := range rc.current.items {
		if obj.Core().Status().IsDirty {
			return true
		}
	}
	return false
}

// DirtyChildren returns created and marked-for-delete members plus, for
// aggregations and compositions, every dirty member and, for associations,
// the added members
func (rc *RelatedCollection[T]) DirtyChildren() []T {
	out := newObjectSet[T]()
	for _, obj := range rc.created.items {
		out.add(obj)
	}
	for _, obj := range rc.markedForDelete.items {
		out.add(obj)
	}
	if rc.rel.def.Type == relationship.Association {
		for _, obj := range rc.added.items {
			out.add(obj)
		}
		return out.slice()
	}
	for _, obj := range rc.current.items {
		if obj.Core().Status().IsDirty {
			out.add(obj)
		}
	}
	return out.slice()
}

func (rc *RelatedCollection[T]) pendingChildren() []bo.BusinessObject {
	var out []bo.BusinessObject
	for _, obj := range rc.DirtyChildren() {
		out = append(out, obj)
	}
	for _, obj := range rc.removed.items {
		if obj.Core().Status().IsDirty {
			out = append(out, obj)
		}
	}
	return out
}

func (rc *RelatedCollection[T]) beforeAdd(obj T) error {
	def := rc.rel.def
	if !rc.persisted.has(obj) {
		if err := relationship.CheckAdd(def, obj); err != nil {
			return err
		}
	}
	single := rc.rel.singleOf(obj)
	if single != nil && single.owner != nil && single.owner.Core() != rc.rel.owner.Core() {
		if err := relationship.CheckReparent(def, obj, rc.rel.owner); err != nil {
			return err
		}
		previous := single.owner
		if m := memberOf(previous, def.Name); m != nil {
			if err := m.checkDetach(obj); err != nil {
				return err
			}
			if err := m.release(obj); err != nil {
				return err
			}
		}
		single.prevOwner = previous
	}
	return rc.rel.link(obj)
}

func (rc *RelatedCollection[T]) beforeRemove(obj T) error {
	return relationship.CheckRemove(rc.rel.def, obj)
}

func (rc *RelatedCollection[T]) afterRemove(obj T, mode detachMode) error {
	switch mode {
	case detachKeep:
		return nil
	case detachByAction:
		if rc.rel.def.RemoveAction() == relationship.RemoveChildDoNothing {
			return nil
		}
	}
	if single := rc.rel.singleOf(obj); single != nil {
		single.prevOwner = rc.rel.owner
	}
	return rc.rel.unlink(obj)
}

func (rc *RelatedCollection[T]) afterRestore(obj T, kind restoreKind) error {
	switch kind {
	case restoreCreated:
		return rc.rel.unlink(obj)
	case restoreAdded:
		return rc.rel.revertLink(obj)
	}
	single := rc.rel.singleOf(obj)
	if single != nil && single.owner != nil && single.owner.Core() != rc.rel.owner.Core() {
		if m := memberOf(single.owner, rc.rel.def.Name); m != nil {
			if err := m.release(obj); err != nil {
				return err
			}
		}
	}
	if single != nil {
		single.prevOwner = nil
	}
	return rc.rel.link(obj)
}

func (rc *RelatedCollection[T]) afterLoad(obj T) {
	if single := rc.rel.singleOf(obj); single != nil {
		single.owner = rc.rel.owner
	}
}

// reclaim returns a removed member to Current without touching its link
func (rc *RelatedCollection[T]) reclaim(obj T) {
	if rc.removed.remove(obj) {
		rc.current.add(obj)
		rc.restoreOrder()
		rc.fire(BusinessObjectAdded, obj)
	}
}
