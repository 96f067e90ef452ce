// Package resource helps resource authors honor the tracking protocol. Base
// takes care of id allocation, snapshot handling, paired entry/exit windows,
// destroy-once, and pooled reuse, so authors only supply their own behavior.
package resource

import (
	"log"

	"github.com/tracelab/strand/track"
)

// Base carries the tracking identity of one resource. Embed it and create it
// with New as the last step of construction.
type Base struct {
	tracker *track.Tracker
	kind    *track.Kind
	id      track.AsyncID
	stor    *track.Snapshot

	destroyed bool
}

// New allocates an id for the resource and announces its creation. ref
// should point at the embedding object, not at the Base.
func New(tr *track.Tracker, kind *track.Kind, ref track.HandleRef) *Base {
	b := &Base{
		tracker: tr,
		kind:    kind,
		id:      tr.NewID(),
	}

	stor, err := tr.EmitInit(b.id, kind, ref)
	if err != nil {
		tr.Escalate(err)
	}
	b.stor = stor

	return b
}

// ID returns the resource id of the current reuse cycle.
func (b *Base) ID() track.AsyncID {
	return b.id
}

// Kind returns the resource kind.
func (b *Base) Kind() *track.Kind {
	return b.kind
}

// Snapshot returns the hook snapshot of the current reuse cycle.
func (b *Base) Snapshot() *track.Snapshot {
	return b.stor
}

// RunInScope runs fn inside the entry/exit window of the resource. An error
// from fn marks the window as failed. A panic from fn marks the window as
// failed and resumes after the window is closed.
func (b *Base) RunInScope(fn func() error) error {
	b.mustNotBeDestroyed()

	if err := b.tracker.EmitBefore(b.id, b.stor); err != nil {
		b.tracker.Escalate(err)
	}

	var fnErr error
	var panicValue any
	panicked := false

	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			panicked = true
			panicValue = r
		}()

		fnErr = fn()
	}()

	failed := panicked || fnErr != nil

	if err := b.tracker.EmitAfter(b.id, b.stor, failed); err != nil {
		b.tracker.Escalate(err)
	}

	if panicked {
		panic(panicValue)
	}

	return fnErr
}

// Destroy releases the resource. Destroying twice does nothing.
func (b *Base) Destroy() {
	if b.destroyed {
		return
	}

	b.destroyed = true

	if err := b.tracker.EmitDestroy(b.id, b.stor); err != nil {
		b.tracker.Escalate(err)
	}
}

// Recycle gives the resource a fresh identity, as pooled resources do on
// reuse: the old id is destroyed, a new id is allocated, and creation is
// announced again. The old id is never referenced afterwards. ref points at
// the embedding object for the new cycle.
func (b *Base) Recycle(ref track.HandleRef) {
	b.Destroy()

	b.destroyed = false
	b.id = b.tracker.NewID()

	stor, err := b.tracker.EmitInit(b.id, b.kind, ref)
	if err != nil {
		b.tracker.Escalate(err)
	}
	b.stor = stor
}

func (b *Base) mustNotBeDestroyed() {
	if b.destroyed {
		log.Panic("resource used after destroy")
	}
}
