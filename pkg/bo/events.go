package bo

// EventType identifies an object lifecycle notification
type EventType int

const (
	// EventSaved fires after the object has been inserted or updated
	EventSaved EventType = iota + 1
	// EventDeleted fires after a deletion has been persisted
	EventDeleted
	// EventIDUpdated fires whenever an identity property changes value
	EventIDUpdated
	// EventPropertyUpdated fires after any property value change
	EventPropertyUpdated
	// EventMarkedForDelete fires when the object is flagged for deletion
	EventMarkedForDelete
	// EventRestored fires after CancelEdits
	EventRestored
)

var eventNames = map[EventType]string{
	EventSaved:           "saved",
	EventDeleted:         "deleted",
	EventIDUpdated:       "id_updated",
	EventPropertyUpdated: "property_updated",
	EventMarkedForDelete: "marked_for_delete",
	EventRestored:        "restored",
}

func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// Event is delivered to object subscribers
type Event struct {
	Type   EventType
	Object BusinessObject

	// Property, OldValue and NewValue are set for EventPropertyUpdated
	Property string
	OldValue any
	NewValue any

	// PreviousKey is set for EventIDUpdated
	PreviousKey Key
}

// Handler receives object events
type Handler func(Event)

// Subscription identifies a registered handler
type Subscription uint64

type subscriber struct {
	id      Subscription
	handler Handler
}

// hub fans events out to subscribers. Handlers may subscribe or unsubscribe
// while an event is being delivered; delivery works on a snapshot and skips
// handlers removed in the meantime.
type hub struct {
	next        Subscription
	subscribers []subscriber
}

func (h *hub) subscribe(handler Handler) Subscription {
	h.next++
	h.subscribers = append(h.subscribers, subscriber{id: h.next, handler: handler})
	return h.next
}

func (h *hub) unsubscribe(id Subscription) {
	for i, s := range h.subscribers {
		if s.id == id {
			h.subscribers = append(h.subscribers[:i:i], h.subscribers[i+1:]...)
			return
		}
	}
}

func (h *hub) active(id Subscription) bool {
	for _, s := range h.subscribers {
		if s.id == id {
			return true
		}
	}
	return false
}

func (h *hub) fire(e Event) {
	snapshot := make([]subscriber, len(h.subscribers))
	copy(snapshot, h.subscribers)
	for _, s := range snapshot {
		if h.active(s.id) {
			s.handler(e)
		}
	}
}

func (h *hub) count() int {
	return len(h.subscribers)
}
