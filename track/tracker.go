// Package track implements lifecycle tracking for asynchronous resources
// inside a single-threaded, event-loop-driven host. Hooks observe every
// tracked resource at four points: creation, callback entry, callback exit,
// and destruction. The package is the substrate that tracing, context
// propagation, and leak detection are built on; see the tracing package for
// ready-made consumers and the loop package for a reference host.
package track

import (
	"log"
)

// RemovalMode selects what Hook.Remove means for resources that captured the
// hook before removal.
type RemovalMode int

const (
	// RemovalSuppressesCaptured stops a removed hook from firing everywhere,
	// including from snapshots that captured it earlier. This is the default.
	RemovalSuppressesCaptured RemovalMode = iota

	// RemovalHonorsCaptured keeps firing a removed hook from snapshots that
	// captured it; removal only stops future captures, like Disable.
	RemovalHonorsCaptured
)

// Tracker owns the state of one tracking domain: the id allocator, the
// context stack, the hook registry, and the live-record table. All Emit calls
// of one Tracker must happen on the same goroutine, the host's loop thread.
// The read-only inspection methods may be called from any goroutine.
type Tracker struct {
	ids      idAllocator
	stack    contextStack
	registry registry
	records  recordTable

	removalMode   RemovalMode
	reviveRemoved bool
	logger        *log.Logger
}

// NewTracker creates a Tracker with the default removal mode and the standard
// logger.
func NewTracker() *Tracker {
	return &Tracker{
		logger: log.Default(),
	}
}

// WithRemovalMode sets the removal mode. It must be called before hooks are
// registered.
func (t *Tracker) WithRemovalMode(m RemovalMode) *Tracker {
	t.removalMode = m
	return t
}

// WithRemovedHookRevival allows Enable to be called on a removed hook,
// turning removal into a reversible state. By default that panics.
func (t *Tracker) WithRemovedHookRevival(allow bool) *Tracker {
	t.reviveRemoved = allow
	return t
}

// WithLogger sets the logger used for fatal-error reporting.
func (t *Tracker) WithLogger(l *log.Logger) *Tracker {
	t.logger = l
	return t
}

// NewID allocates the id for a resource about to be created. Each id is
// strictly greater than every id allocated before it.
func (t *Tracker) NewID() AsyncID {
	return t.ids.allocate()
}

// CurrentID returns the id of the resource whose callback is executing, or
// None when control is with the scheduler.
func (t *Tracker) CurrentID() AsyncID {
	return t.stack.top()
}

// CurrentParentID returns the id that EmitInit records as the parent of a
// resource created right now. It equals CurrentID; resource constructors call
// this form to say what they mean.
func (t *Tracker) CurrentParentID() AsyncID {
	return t.stack.top()
}

// Register adds a hook in registration order. The hook starts disabled.
func (t *Tracker) Register(funcs HookFuncs) *Hook {
	h := &Hook{tracker: t, funcs: funcs}
	t.registry.add(h)

	return h
}

// NumHooks returns the number of registered hooks, removed ones included.
func (t *Tracker) NumHooks() int {
	return t.registry.numHooks()
}

// Hooks returns a read-only description of every registered hook.
func (t *Tracker) Hooks() []HookView {
	return t.registry.views()
}

// LookupByID returns the live record of id. The view is best effort: the
// handle behind it may already be collected, and a resource observed live
// here may be destroyed by the time the caller acts on it.
func (t *Tracker) LookupByID(id AsyncID) (RecordView, bool) {
	rec, ok := t.records.lookup(id)
	if !ok {
		return RecordView{}, false
	}

	return rec.view(), true
}

// LiveRecords returns all live records ordered by id.
func (t *Tracker) LiveRecords() []RecordView {
	return t.records.views()
}

// Handle returns the host object behind a live resource, or nil when the
// resource is unknown, has no handle, or the handle has been collected.
func (t *Tracker) Handle(id AsyncID) any {
	rec, ok := t.records.lookup(id)
	if !ok || rec.ref == nil {
		return nil
	}

	return rec.ref.Value()
}

// NumLive returns the number of created but not yet destroyed resources.
func (t *Tracker) NumLive() int {
	return t.records.numLive()
}

// StackDepth returns the nesting depth of the context stack.
func (t *Tracker) StackDepth() int {
	return t.stack.depth()
}

// Stack returns the context stack from the outermost to the innermost
// executing resource.
func (t *Tracker) Stack() []AsyncID {
	return t.stack.snapshot()
}
