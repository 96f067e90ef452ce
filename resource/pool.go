package resource

import "github.com/tracelab/strand/track"

// An Entry is one pooled object together with its tracking identity.
type Entry struct {
	*Base

	// Value is the pooled object itself.
	Value any
}

// A Pool hands out reusable entries. Each handout is tracked as a fresh
// resource: taking a parked entry destroys its previous identity and
// announces a new one, so observers see every reuse cycle as its own
// resource.
type Pool struct {
	tracker  *track.Tracker
	kind     *track.Kind
	newValue func() any
	parked   []*Entry
}

// NewPool creates a pool whose entries hold the values produced by newValue.
func NewPool(tr *track.Tracker, kind *track.Kind, newValue func() any) *Pool {
	return &Pool{
		tracker:  tr,
		kind:     kind,
		newValue: newValue,
	}
}

// Get returns an entry, reusing a parked one when available.
func (p *Pool) Get() *Entry {
	if n := len(p.parked); n > 0 {
		e := p.parked[n-1]
		p.parked = p.parked[:n-1]
		e.Recycle(track.NewHandleRef(e))

		return e
	}

	e := &Entry{Value: p.newValue()}
	e.Base = New(p.tracker, p.kind, track.NewHandleRef(e))

	return e
}

// Put parks the entry for reuse. The identity of the entry stays live while
// it is parked; it is replaced when the entry is handed out again.
func (p *Pool) Put(e *Entry) {
	p.parked = append(p.parked, e)
}

// Discard destroys the entry instead of parking it.
func (p *Pool) Discard(e *Entry) {
	e.Destroy()
}

// NumParked returns the number of entries waiting for reuse.
func (p *Pool) NumParked() int {
	return len(p.parked)
}
