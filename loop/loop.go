// Package loop provides a deterministic, single-threaded event loop that
// drives lifecycle tracking. Events scheduled on the loop run in virtual
// time; events that belong to a tracked resource are wrapped in the
// entry/exit notifications of that resource. The timer, ticker and immediate
// resources in this package implement the full tracking protocol and serve as
// the reference for resource authors.
package loop

import (
	"errors"
	"fmt"
	"log"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/tracelab/strand/track"
)

// TimeTeller can be used to get the current virtual time.
type TimeTeller interface {
	CurrentTime() VTime
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	Schedule(e Event)
}

// A TeardownHandler is called after the loop has drained all events.
type TeardownHandler interface {
	Handle(now VTime)
}

// PanicError reports a panic that escaped the callback of a tracked
// resource. The exit notification with the failure flag has already been
// dispatched when Run returns this error.
type PanicError struct {
	ResourceID track.AsyncID
	Reason     any
	Stack      []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("callback of resource %s panicked: %v",
		e.ResourceID, e.Reason)
}

// Loop runs events one after another on a single goroutine.
type Loop struct {
	tracker *track.Tracker

	timeLock   sync.RWMutex
	now        VTime
	queue      EventQueue
	immediates EventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex

	teardownHandlers []TeardownHandler
}

// New creates a Loop that reports resource lifecycles to tracker.
func New(tracker *track.Tracker) *Loop {
	l := new(Loop)

	l.tracker = tracker
	l.queue = NewEventQueue()
	l.immediates = NewInsertionQueue()

	return l
}

// Tracker returns the tracker the loop reports to.
func (l *Loop) Tracker() *track.Tracker {
	return l.tracker
}

// Schedule registers an event to happen in the future.
func (l *Loop) Schedule(evt Event) {
	now := l.readNow()
	if evt.Due() < now {
		log.Panic("scheduling an event earlier than current time")
	}

	l.queue.Push(evt)
}

// Post puts a bookkeeping function on the immediate lane. Posted functions
// run in arrival order, before any timer due at the same virtual time, and
// are not tracked.
func (l *Loop) Post(fn func() error) {
	l.immediates.Push(postEvent{due: l.readNow(), fn: fn})
}

func (l *Loop) readNow() VTime {
	l.timeLock.RLock()
	t := l.now
	l.timeLock.RUnlock()

	return t
}

func (l *Loop) writeNow(t VTime) {
	l.timeLock.Lock()
	l.now = t
	l.timeLock.Unlock()
}

// Run processes events until no event is left, a tracked callback panics, or
// hook dispatch fails fatally. Only one Run may be active at a time.
func (l *Loop) Run() error {
	l.singleRunLock.Lock()
	defer l.singleRunLock.Unlock()

	for {
		if l.noMoreEvent() {
			return nil
		}

		l.pauseLock.Lock()

		evt := l.nextEvent()
		now := l.readNow()
		if evt.Due() < now {
			log.Panicf(
				"cannot run event in the past, evt %s @ %.10f, now %.10f",
				reflect.TypeOf(evt), evt.Due(), now,
			)
		}
		l.writeNow(evt.Due())

		err := l.serveEvent(evt)

		l.pauseLock.Unlock()

		if err != nil {
			return err
		}
	}
}

func (l *Loop) noMoreEvent() bool {
	return l.queue.Len() == 0 && l.immediates.Len() == 0
}

// nextEvent prefers the immediate lane when it is due no later than the
// earliest timer.
func (l *Loop) nextEvent() Event {
	if l.immediates.Len() == 0 {
		return l.queue.Pop()
	}

	if l.queue.Len() == 0 {
		return l.immediates.Pop()
	}

	immediate := l.immediates.Peek()
	timed := l.queue.Peek()

	if immediate.Due() <= timed.Due() {
		return l.immediates.Pop()
	}

	return l.queue.Pop()
}

func (l *Loop) serveEvent(evt Event) error {
	if evt.ResourceID() == track.None {
		return l.serveUntracked(evt)
	}

	return l.serveTracked(evt)
}

// serveUntracked runs bookkeeping events. Their errors are swallowed unless
// hook dispatch failed underneath, which must stop the loop.
func (l *Loop) serveUntracked(evt Event) error {
	err := evt.Handler().Handle(evt)

	var fatal *track.FatalError
	if errors.As(err, &fatal) {
		return err
	}

	return nil
}

// serveTracked brackets the handler call in the entry/exit notifications of
// the event's resource. A handler error marks the window as failed and the
// loop continues; a handler panic marks the window as failed and stops the
// loop with a PanicError.
func (l *Loop) serveTracked(evt Event) error {
	id := evt.ResourceID()
	stor := evt.Snapshot()

	if err := l.tracker.EmitBefore(id, stor); err != nil {
		return err
	}

	var handlerErr error
	var panicErr *PanicError

	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			panicErr = &PanicError{
				ResourceID: id,
				Reason:     r,
				Stack:      debug.Stack(),
			}
		}()

		handlerErr = evt.Handler().Handle(evt)
	}()

	failed := panicErr != nil || handlerErr != nil

	if err := l.tracker.EmitAfter(id, stor, failed); err != nil {
		return err
	}

	if panicErr != nil {
		return panicErr
	}

	var fatal *track.FatalError
	if errors.As(handlerErr, &fatal) {
		return handlerErr
	}

	return nil
}

// Pause prevents the loop from serving more events.
func (l *Loop) Pause() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if l.isPaused {
		return
	}

	l.pauseLock.Lock()
	l.isPaused = true
}

// Continue allows the paused loop to serve more events.
func (l *Loop) Continue() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if !l.isPaused {
		return
	}

	l.pauseLock.Unlock()
	l.isPaused = false
}

// CurrentTime returns the virtual time of the event being served.
func (l *Loop) CurrentTime() VTime {
	return l.readNow()
}

// PendingEvents returns the number of scheduled and immediate events that
// have not run yet.
func (l *Loop) PendingEvents() (timed, immediate int) {
	return l.queue.Len(), l.immediates.Len()
}

// RegisterTeardownHandler registers a handler to be called after the loop
// has finished.
func (l *Loop) RegisterTeardownHandler(handler TeardownHandler) {
	l.teardownHandlers = append(l.teardownHandlers, handler)
}

// Finished should be called after the run ends. It calls all the registered
// teardown handlers.
func (l *Loop) Finished() {
	now := l.readNow()
	for _, h := range l.teardownHandlers {
		h.Handle(now)
	}
}

// postEvent is the untracked event behind Post.
type postEvent struct {
	due VTime
	fn  func() error
}

func (e postEvent) Due() VTime {
	return e.due
}

func (e postEvent) Handler() Handler {
	return e
}

func (e postEvent) ResourceID() track.AsyncID {
	return track.None
}

func (e postEvent) Snapshot() *track.Snapshot {
	return nil
}

func (e postEvent) Handle(Event) error {
	return e.fn()
}
