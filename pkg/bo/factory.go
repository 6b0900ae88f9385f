package bo

import (
	"github.com/ammar0144/bo4go/pkg/errs"
)

// Factory constructs objects of type T
type Factory[T BusinessObject] struct {
	// New creates an object using T's own class definition
	New func() T

	// NewWithDef creates an object using an alternate class definition.
	// Optional; without it only T's own definition can be used.
	NewWithDef func(def *ClassDef) T
}

// Create builds a new object for def. A nil def, or the definition New
// produces, uses New.
func (f Factory[T]) Create(def *ClassDef) (T, error) {
	var zero T
	if f.New == nil {
		return zero, errs.Configuration(className(def), "create", "no constructor registered for %s", className(def))
	}
	obj := f.New()
	if def == nil || obj.Core().ClassDef() == def {
		return obj, nil
	}
	if f.NewWithDef == nil {
		return zero, errs.Configuration(def.ClassName, "create",
			"the business object type for %s does not have a constructor accepting a ClassDef", def.ClassName)
	}
	return f.NewWithDef(def), nil
}

// DefaultClassDef returns the class definition used by New
func (f Factory[T]) DefaultClassDef() *ClassDef {
	if f.New == nil {
		return nil
	}
	return f.New().Core().ClassDef()
}

func className(def *ClassDef) string {
	if def == nil {
		return "<unknown>"
	}
	return def.ClassName
}
