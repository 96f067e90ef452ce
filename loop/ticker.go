package loop

import (
	"log"

	"github.com/tracelab/strand/track"
)

// KindTicker is the resource kind of repeating tickers.
var KindTicker = track.RegisterKind("loop.ticker", track.SubsystemTimer)

// A Ticker fires its callback every period virtual seconds until stopped.
// All ticks run through the same resource id; the ticker is destroyed on
// Stop.
type Ticker struct {
	loop   *Loop
	id     track.AsyncID
	stor   *track.Snapshot
	period VTime
	fn     func() error

	stopped bool
}

// NewTicker creates a ticker on l. The period must be positive.
func NewTicker(l *Loop, period VTime, fn func() error) *Ticker {
	periodMustBePositive(period)

	t := &Ticker{
		loop:   l,
		id:     l.tracker.NewID(),
		period: period,
		fn:     fn,
	}

	l.Schedule(tickEvent{due: l.CurrentTime() + period, t: t})

	stor, err := l.tracker.EmitInit(t.id, KindTicker, track.NewHandleRef(t))
	if err != nil {
		l.tracker.Escalate(err)
	}
	t.stor = stor

	return t
}

// ID returns the resource id of the ticker.
func (t *Ticker) ID() track.AsyncID {
	return t.id
}

// Stop ends the ticking and releases the ticker. Stopping from inside the
// tick callback is safe; the destroy notification goes through the immediate
// lane.
func (t *Ticker) Stop() {
	if t.stopped {
		return
	}

	t.stopped = true
	t.release()
}

// Handle fires one tick and schedules the next one.
func (t *Ticker) Handle(Event) error {
	if t.stopped {
		return nil
	}

	err := t.fn()

	if !t.stopped {
		t.loop.Schedule(tickEvent{
			due: t.loop.CurrentTime() + t.period,
			t:   t,
		})
	}

	return err
}

func (t *Ticker) release() {
	id := t.id
	stor := t.stor
	l := t.loop

	l.Post(func() error {
		return l.tracker.EmitDestroy(id, stor)
	})
}

type tickEvent struct {
	due VTime
	t   *Ticker
}

func (e tickEvent) Due() VTime {
	return e.due
}

func (e tickEvent) Handler() Handler {
	return e.t
}

func (e tickEvent) ResourceID() track.AsyncID {
	if e.t.stopped {
		return track.None
	}

	return e.t.id
}

func (e tickEvent) Snapshot() *track.Snapshot {
	return e.t.stor
}

func periodMustBePositive(period VTime) {
	if period <= 0 {
		log.Panic("ticker period must be positive")
	}
}
