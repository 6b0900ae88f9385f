package relationship

import (
	"reflect"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/errs"
)

// CheckAdd decides whether child may join the relationship. New children are
// always accepted; persisted children are refused by compositions and by
// AddChildPrevent.
func CheckAdd(d *Def, child bo.BusinessObject) error {
	if IsNil(child) {
		return errs.Developer(d.RelatedClass, d.Name, "add",
			"a %s could not be added since the business object is null", d.RelatedClass)
	}
	core := child.Core()
	if core.Status().IsNew {
		return nil
	}
	if d.Type == Composition {
		return errs.Developer(d.RelatedClass, d.Name, "add",
			"the %s identified by %s could not be added since the relationship is set up as Composition ('%s' relationship of %s); only new objects can be added",
			d.RelatedClass, core.Key(), d.Name, d.OwnerClass)
	}
	if d.AddChildAction == AddChildPrevent {
		return errs.Developer(d.RelatedClass, d.Name, "add",
			"the %s identified by %s could not be added to the '%s' relationship of %s since it is set up with %s",
			d.RelatedClass, core.Key(), d.Name, d.OwnerClass, AddChildPrevent)
	}
	return nil
}

// CheckRemove decides whether child may leave the relationship. New children
// can always be dropped.
func CheckRemove(d *Def, child bo.BusinessObject) error {
	core := child.Core()
	if core.Status().IsNew {
		return nil
	}
	if d.RemoveAction() == RemoveChildPrevent {
		return errs.Developer(d.RelatedClass, d.Name, "remove",
			"the %s identified by %s could not be removed from the '%s' relationship of %s since it is set up with %s",
			d.RelatedClass, core.Key(), d.Name, d.OwnerClass, RemoveChildPrevent)
	}
	return nil
}

// CheckReparent decides whether a child may switch owners, newOwner being nil
// when the child is detached. Persisted children of a composition never move.
func CheckReparent(d *Def, child, newOwner bo.BusinessObject) error {
	core := child.Core()
	if d.Type != Composition || core.Status().IsNew {
		return nil
	}
	return errs.Developer(d.RelatedClass, d.Name, "reparent",
		"the %s identified by %s could not be re-parented since the '%s' relationship of %s is set up as Composition",
		d.RelatedClass, core.Key(), d.Name, d.OwnerClass)
}

// CheckOwnerDelete decides whether owner may be marked for delete while
// children are still related
func CheckOwnerDelete(d *Def, owner bo.BusinessObject, children int) error {
	if d.DeleteAction() != DeleteParentPrevent || children == 0 {
		return nil
	}
	return errs.Developer(d.OwnerClass, d.Name, "mark_for_delete",
		"the %s identified by %s could not be deleted since the '%s' relationship is set up with %s and %d related %s object(s) exist",
		d.OwnerClass, owner.Core().Key(), d.Name, DeleteParentPrevent, children, d.RelatedClass)
}

// IsNil reports whether obj is nil or a nil pointer
func IsNil(obj bo.BusinessObject) bool {
	if obj == nil {
		return true
	}
	rv := reflect.ValueOf(obj)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
