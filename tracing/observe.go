package tracing

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/tracelab/strand/loop"
	"github.com/tracelab/strand/track"
)

// An Observation is one tracer attached to one tracker. Stop detaches it.
type Observation struct {
	hook *track.Hook
	key  observedKey
}

type observedKey struct {
	tracker *track.Tracker
	tracer  Tracer
}

var (
	observedLock sync.Mutex
	observed     = make(map[observedKey]bool)
)

// Observe attaches tracer to tracker and enables the underlying hook, so all
// resources created from now on are reported. Timestamps come from tt.
// Attaching the same tracer to the same tracker twice panics.
func Observe(tracker *track.Tracker, tt loop.TimeTeller, tracer Tracer) *Observation {
	key := observedKey{tracker: tracker, tracer: tracer}

	mustNotObserveTwice(key)

	hook := tracker.Register(track.HookFuncs{
		Init: func(id track.AsyncID, kind *track.Kind, parent track.AsyncID, _ track.HandleRef) {
			tracer.StartSpan(Span{
				ID:        id,
				Kind:      kind.Name,
				Subsystem: string(kind.Subsystem),
				Parent:    parent,
				CreatedAt: tt.CurrentTime(),
			})
		},
		Before: func(id track.AsyncID) {
			tracer.EnterSpan(id)
		},
		After: func(id track.AsyncID, failed bool) {
			tracer.ExitSpan(id, failed)
		},
		Destroy: func(id track.AsyncID) {
			tracer.EndSpan(Span{
				ID:          id,
				DestroyedAt: tt.CurrentTime(),
			})
		},
	}).Enable()

	return &Observation{hook: hook, key: key}
}

func mustNotObserveTwice(key observedKey) {
	observedLock.Lock()
	defer observedLock.Unlock()

	if observed[key] {
		panic(fmt.Sprintf(
			"tracker already has tracer %s", reflect.TypeOf(key.tracer)))
	}

	observed[key] = true
}

// Stop removes the underlying hook. Resources that captured it stop
// reporting under the default removal mode; the tracer can be attached
// again afterwards.
func (o *Observation) Stop() {
	o.hook.Remove()

	observedLock.Lock()
	defer observedLock.Unlock()

	delete(observed, o.key)
}

// Hook exposes the underlying hook, mostly for enabling and disabling
// observation windows.
func (o *Observation) Hook() *track.Hook {
	return o.hook
}
