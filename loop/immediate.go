package loop

import "github.com/tracelab/strand/track"

// KindImmediate is the resource kind of immediates.
var KindImmediate = track.RegisterKind("loop.immediate", track.SubsystemTimer)

// An Immediate fires its callback once on the immediate lane, before any
// timer due at the same virtual time. Like a fired timer, it is destroyed
// after the callback.
type Immediate struct {
	loop *Loop
	id   track.AsyncID
	stor *track.Snapshot
	fn   func() error

	stopped bool
	fired   bool
}

// NewImmediate creates an immediate on l.
func NewImmediate(l *Loop, fn func() error) *Immediate {
	i := &Immediate{
		loop: l,
		id:   l.tracker.NewID(),
		fn:   fn,
	}

	l.immediates.Push(immediateEvent{due: l.CurrentTime(), i: i})

	stor, err := l.tracker.EmitInit(i.id, KindImmediate, track.NewHandleRef(i))
	if err != nil {
		l.tracker.Escalate(err)
	}
	i.stor = stor

	return i
}

// ID returns the resource id of the immediate.
func (i *Immediate) ID() track.AsyncID {
	return i.id
}

// Stop cancels the immediate if it has not fired yet.
func (i *Immediate) Stop() {
	if i.stopped || i.fired {
		return
	}

	i.stopped = true
	i.release()
}

// Handle fires the immediate callback and then releases the immediate.
func (i *Immediate) Handle(Event) error {
	if i.stopped {
		return nil
	}

	i.fired = true
	err := i.fn()
	i.release()

	return err
}

func (i *Immediate) release() {
	id := i.id
	stor := i.stor
	l := i.loop

	l.Post(func() error {
		return l.tracker.EmitDestroy(id, stor)
	})
}

type immediateEvent struct {
	due VTime
	i   *Immediate
}

func (e immediateEvent) Due() VTime {
	return e.due
}

func (e immediateEvent) Handler() Handler {
	return e.i
}

func (e immediateEvent) ResourceID() track.AsyncID {
	if e.i.stopped {
		return track.None
	}

	return e.i.id
}

func (e immediateEvent) Snapshot() *track.Snapshot {
	return e.i.stor
}
