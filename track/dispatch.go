package track

import (
	"fmt"
	"runtime/debug"
)

// Dispatch operations, as reported in FatalError.Op.
const (
	opInit    = "init"
	opBefore  = "before"
	opAfter   = "after"
	opDestroy = "destroy"
)

// EmitInit announces the creation of a resource. The id must come from NewID
// and must not have been announced before. The parent is the currently
// executing resource. EmitInit captures the hooks enabled at this instant and
// returns the snapshot; the same snapshot must be passed to every later Emit
// call for this id.
//
// The returned error is non-nil exactly when a hook panicked; see FatalError.
func (t *Tracker) EmitInit(id AsyncID, kind *Kind, ref HandleRef) (*Snapshot, error) {
	return t.EmitInitWithParent(id, kind, t.CurrentID(), ref)
}

// EmitInitWithParent is EmitInit for resources whose logical parent differs
// from the currently executing resource.
func (t *Tracker) EmitInitWithParent(
	id AsyncID,
	kind *Kind,
	parent AsyncID,
	ref HandleRef,
) (*Snapshot, error) {
	return t.emitInit(id, kind, parent, t.registry.enabledSnapshot(), ref)
}

// EmitInitInherited is EmitInit for resources that must observe through their
// parent's snapshot instead of the currently enabled hooks. Pooled resources
// use it so that every reuse cycle reports to the same observers as the pool
// itself.
func (t *Tracker) EmitInitInherited(
	id AsyncID,
	kind *Kind,
	parent AsyncID,
	parentStor *Snapshot,
	ref HandleRef,
) (*Snapshot, error) {
	return t.emitInit(id, kind, parent, parentStor, ref)
}

func (t *Tracker) emitInit(
	id AsyncID,
	kind *Kind,
	parent AsyncID,
	stor *Snapshot,
	ref HandleRef,
) (*Snapshot, error) {
	idMustNotBeNone(id)
	kindMustBeRegistered(kind)

	t.records.add(&Record{
		id:     id,
		kind:   kind,
		parent: parent,
		ref:    ref,
		stor:   stor,
		state:  StateLive,
	})

	for _, h := range stor.list() {
		if t.suppressed(h) || h.funcs.Init == nil {
			continue
		}

		err := t.invoke(h, opInit, id, func() {
			h.funcs.Init(id, kind, parent, ref)
		})
		if err != nil {
			return stor, err
		}
	}

	return stor, nil
}

// EmitBefore announces that the callback of resource id is about to run. It
// pushes id on the context stack, so hooks and the callback itself observe id
// as the current resource. Every EmitBefore must be paired with exactly one
// EmitAfter; re-entering a resource that is already running panics.
func (t *Tracker) EmitBefore(id AsyncID, stor *Snapshot) error {
	idMustNotBeNone(id)

	if rec, ok := t.records.lookup(id); ok && rec.state == StateRunning {
		panic(fmt.Sprintf("resource %s re-entered while running", id))
	}

	t.stack.push(id)
	t.records.setState(id, StateRunning)

	for _, h := range stor.list() {
		if t.suppressed(h) || h.funcs.Before == nil {
			continue
		}

		err := t.invoke(h, opBefore, id, func() {
			h.funcs.Before(id)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// EmitAfter announces that the callback of resource id has returned. failed
// reports abnormal termination of the callback. Hooks still observe id as the
// current resource; the id is popped afterwards. The popped id must be the
// one announced, otherwise the entry/exit pairing was violated and the engine
// panics.
func (t *Tracker) EmitAfter(id AsyncID, stor *Snapshot, failed bool) error {
	idMustNotBeNone(id)

	var fatal error

	for _, h := range stor.list() {
		if t.suppressed(h) || h.funcs.After == nil {
			continue
		}

		fatal = t.invoke(h, opAfter, id, func() {
			h.funcs.After(id, failed)
		})
		if fatal != nil {
			break
		}
	}

	// The stack is restored even when a hook panicked, so that teardown
	// handlers observe a consistent engine.
	popped := t.stack.pop()
	if popped != id {
		panic(fmt.Sprintf(
			"crossed callback windows: exiting %s, innermost is %s",
			id, popped))
	}

	t.records.setState(id, StateLive)

	return fatal
}

// EmitDestroy announces that resource id has been released. Destroy fires at
// most once per id; announcing an unknown or already destroyed id is a no-op.
// Destroying a resource whose callback is still on the context stack panics.
func (t *Tracker) EmitDestroy(id AsyncID, stor *Snapshot) error {
	idMustNotBeNone(id)

	if t.stack.contains(id) {
		panic(fmt.Sprintf("resource %s destroyed while on the context stack", id))
	}

	if _, ok := t.records.lookup(id); !ok {
		return nil
	}

	var fatal error

	for _, h := range stor.list() {
		if t.suppressed(h) || h.funcs.Destroy == nil {
			continue
		}

		fatal = t.invoke(h, opDestroy, id, func() {
			h.funcs.Destroy(id)
		})
		if fatal != nil {
			break
		}
	}

	if rec, ok := t.records.remove(id); ok {
		rec.state = StateDestroyed
	}

	return fatal
}

// suppressed reports whether a captured hook must be skipped at fire time.
// Disabling never suppresses captured hooks; removal does under the default
// removal mode.
func (t *Tracker) suppressed(h *Hook) bool {
	return t.removalMode == RemovalSuppressesCaptured && h.Removed()
}

func (t *Tracker) invoke(h *Hook, op string, id AsyncID, call func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		err = &FatalError{
			Op:      op,
			ID:      id,
			HookSeq: h.seq,
			Reason:  r,
			Stack:   debug.Stack(),
		}
	}()

	call()

	return nil
}

func idMustNotBeNone(id AsyncID) {
	if id == None {
		panic("resource id must not be none")
	}
}

func kindMustBeRegistered(kind *Kind) {
	if kind == nil {
		panic("resource kind must not be nil")
	}

	registered, ok := KindByName(kind.Name)
	if !ok || registered != kind {
		panic(fmt.Sprintf("kind %s is not registered", kind.Name))
	}
}
