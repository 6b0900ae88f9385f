package collection

import (
	"github.com/ammar0144/bo4go/pkg/bo"
)

// EventKind identifies a collection notification
type EventKind int

const (
	// BusinessObjectAdded fires when an object enters the collection through
	// Add, CreateBusinessObject or a restore. Loading does not fire it.
	BusinessObjectAdded EventKind = iota + 1
	// BusinessObjectRemoved fires when an object leaves the collection
	// through Remove, MarkForDelete or a restore
	BusinessObjectRemoved
	// BusinessObjectUpdated fires when a member is saved without changing
	// membership
	BusinessObjectUpdated
	// BusinessObjectIDUpdated fires when a member's identity changes
	BusinessObjectIDUpdated
)

func (k EventKind) String() string {
	switch k {
	case BusinessObjectAdded:
		return "added"
	case BusinessObjectRemoved:
		return "removed"
	case BusinessObjectUpdated:
		return "updated"
	case BusinessObjectIDUpdated:
		return "id_updated"
	}
	return "unknown"
}

// Event is delivered to collection subscribers
type Event[T bo.BusinessObject] struct {
	Kind EventKind

	// Sender is the collection raising the event
	Sender any

	Object T
}

// Subscription identifies a registered collection handler
type Subscription uint64

type listener[T bo.BusinessObject] struct {
	id      Subscription
	kind    EventKind
	handler func(Event[T])
}

type listeners[T bo.BusinessObject] struct {
	next  Subscription
	items []listener[T]
}

func (l *listeners[T]) on(kind EventKind, h func(Event[T])) Subscription {
	l.next++
	l.items = append(l.items, listener[T]{id: l.next, kind: kind, handler: h})
	return l.next
}

func (l *listeners[T]) off(id Subscription) {
	for i, item := range l.items {
		if item.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *listeners[T]) active(id Subscription) bool {
	for _, item := range l.items {
		if item.id == id {
			return true
		}
	}
	return false
}

func (l *listeners[T]) fire(e Event[T]) {
	snapshot := make([]listener[T], len(l.items))
	copy(snapshot, l.items)
	for _, item := range snapshot {
		if item.kind == e.Kind && l.active(item.id) {
			item.handler(e)
		}
	}
}
