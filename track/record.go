package track

import (
	"sort"
	"sync"
	"weak"
)

// HandleRef is a non-owning reference to the host object behind a tracked
// resource. The tracking engine never keeps host objects alive: once the
// embedder drops its last strong reference, Value starts returning nil.
type HandleRef interface {
	// Value returns the host object, or nil if it has been collected.
	Value() any
}

// NewHandleRef builds a HandleRef on a weak pointer to v.
func NewHandleRef[T any](v *T) HandleRef {
	return weakRef[T]{p: weak.Make(v)}
}

type weakRef[T any] struct {
	p weak.Pointer[T]
}

func (r weakRef[T]) Value() any {
	v := r.p.Value()
	if v == nil {
		return nil
	}

	return v
}

// State is the lifecycle state of a tracked resource.
type State int

const (
	// StateLive means the resource exists and no callback of it is running.
	StateLive State = iota

	// StateRunning means the resource is inside a callback window, between
	// the entry and exit notifications.
	StateRunning

	// StateDestroyed means the resource has been released. Destroyed records
	// are no longer held by the tracker.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateRunning:
		return "running"
	case StateDestroyed:
		return "destroyed"
	}

	return "unknown"
}

// Record is what the tracker knows about one live resource.
type Record struct {
	id     AsyncID
	kind   *Kind
	parent AsyncID
	ref    HandleRef
	stor   *Snapshot
	state  State
	fires  uint64
}

// RecordView is the read-only projection of a Record handed to inspection
// surfaces.
type RecordView struct {
	ID          AsyncID `json:"id"`
	Kind        string  `json:"kind"`
	Subsystem   string  `json:"subsystem"`
	Parent      AsyncID `json:"parent"`
	State       string  `json:"state"`
	HandleAlive bool    `json:"handle_alive"`
	Fires       uint64  `json:"fires"`
}

func (r *Record) view() RecordView {
	return RecordView{
		ID:          r.id,
		Kind:        r.kind.Name,
		Subsystem:   string(r.kind.Subsystem),
		Parent:      r.parent,
		State:       r.state.String(),
		HandleAlive: r.ref != nil && r.ref.Value() != nil,
		Fires:       r.fires,
	}
}

// recordTable indexes the live records by id. Mutation happens on the loop
// thread; the lock serves concurrent inspection reads.
type recordTable struct {
	lock    sync.RWMutex
	records map[AsyncID]*Record
}

func (t *recordTable) add(r *Record) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.records == nil {
		t.records = make(map[AsyncID]*Record)
	}

	if _, ok := t.records[r.id]; ok {
		panic("duplicated resource id " + r.id.String())
	}

	t.records[r.id] = r
}

func (t *recordTable) lookup(id AsyncID) (*Record, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	r, ok := t.records[id]

	return r, ok
}

func (t *recordTable) remove(id AsyncID) (*Record, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	r, ok := t.records[id]
	if !ok {
		return nil, false
	}

	delete(t.records, id)

	return r, true
}

func (t *recordTable) setState(id AsyncID, s State) {
	t.lock.Lock()
	defer t.lock.Unlock()

	r, ok := t.records[id]
	if !ok {
		return
	}

	r.state = s
	if s == StateRunning {
		r.fires++
	}
}

func (t *recordTable) numLive() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return len(t.records)
}

// views returns the live records ordered by id.
func (t *recordTable) views() []RecordView {
	t.lock.RLock()
	defer t.lock.RUnlock()

	out := make([]RecordView, 0, len(t.records))

	for _, r := range t.records {
		out = append(out, r.view())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out
}
