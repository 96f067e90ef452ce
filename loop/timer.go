package loop

import (
	"log"

	"github.com/tracelab/strand/track"
)

// KindTimer is the resource kind of one-shot timers.
var KindTimer = track.RegisterKind("loop.timer", track.SubsystemTimer)

// A Timer fires its callback exactly once, delay virtual seconds after
// creation. A timer that fires or is stopped is destroyed; its id is never
// used again.
type Timer struct {
	loop *Loop
	id   track.AsyncID
	stor *track.Snapshot
	fn   func() error

	stopped bool
	fired   bool
}

// NewTimer creates a timer on l. The delay must not be negative.
func NewTimer(l *Loop, delay VTime, fn func() error) *Timer {
	delayMustNotBeNegative(delay)

	t := &Timer{
		loop: l,
		id:   l.tracker.NewID(),
		fn:   fn,
	}

	l.Schedule(timerEvent{due: l.CurrentTime() + delay, t: t})

	stor, err := l.tracker.EmitInit(t.id, KindTimer, track.NewHandleRef(t))
	if err != nil {
		l.tracker.Escalate(err)
	}
	t.stor = stor

	return t
}

// ID returns the resource id of the timer.
func (t *Timer) ID() track.AsyncID {
	return t.id
}

// Stop cancels the timer. The destroy notification goes through the
// immediate lane, so stopping from inside a callback window is safe. Stopping
// a fired or stopped timer does nothing.
func (t *Timer) Stop() {
	if t.stopped || t.fired {
		return
	}

	t.stopped = true
	t.release()
}

// Handle fires the timer callback and then releases the timer.
func (t *Timer) Handle(Event) error {
	if t.stopped {
		return nil
	}

	t.fired = true
	err := t.fn()
	t.release()

	return err
}

func (t *Timer) release() {
	id := t.id
	stor := t.stor
	l := t.loop

	l.Post(func() error {
		return l.tracker.EmitDestroy(id, stor)
	})
}

// timerEvent is the due event of a Timer. A stopped timer turns its pending
// event into an untracked no-op, so no entry/exit window is opened for it.
type timerEvent struct {
	due VTime
	t   *Timer
}

func (e timerEvent) Due() VTime {
	return e.due
}

func (e timerEvent) Handler() Handler {
	return e.t
}

func (e timerEvent) ResourceID() track.AsyncID {
	if e.t.stopped {
		return track.None
	}

	return e.t.id
}

func (e timerEvent) Snapshot() *track.Snapshot {
	return e.t.stor
}

func delayMustNotBeNegative(delay VTime) {
	if delay < 0 {
		log.Panic("timer delay must not be negative")
	}
}
