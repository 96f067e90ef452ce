package loop

import "github.com/tracelab/strand/track"

// VTime is virtual time in seconds. The loop advances it event by event, so
// runs are deterministic regardless of wall-clock behavior.
type VTime float64

// An Event is something going to happen in the future.
type Event interface {
	// Due returns the virtual time the event should happen at.
	Due() VTime

	// Handler returns the handler that should handle the event.
	Handler() Handler

	// ResourceID returns the tracked resource the event belongs to, or
	// track.None for untracked bookkeeping events. Tracked events run inside
	// an entry/exit window of that resource.
	ResourceID() track.AsyncID

	// Snapshot returns the hook snapshot captured when the resource was
	// created. It is nil for untracked events.
	Snapshot() *track.Snapshot
}

// A Handler processes the events scheduled on it.
type Handler interface {
	Handle(e Event) error
}

// EventBase provides the basic fields and getters for other events.
type EventBase struct {
	due     VTime
	handler Handler
	id      track.AsyncID
	stor    *track.Snapshot
}

// NewEventBase creates an EventBase for a tracked resource. Pass track.None
// and a nil snapshot for untracked events.
func NewEventBase(
	due VTime,
	handler Handler,
	id track.AsyncID,
	stor *track.Snapshot,
) EventBase {
	return EventBase{
		due:     due,
		handler: handler,
		id:      id,
		stor:    stor,
	}
}

// Due returns the virtual time the event is going to happen.
func (e EventBase) Due() VTime {
	return e.due
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// ResourceID returns the tracked resource of the event.
func (e EventBase) ResourceID() track.AsyncID {
	return e.id
}

// Snapshot returns the hook snapshot of the event's resource.
func (e EventBase) Snapshot() *track.Snapshot {
	return e.stor
}
