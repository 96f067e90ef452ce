package tracing

import (
	"sync"

	"github.com/tracelab/strand/track"
)

// FireCountTracer counts callback fires per resource kind: how often the
// callbacks of a kind ran, how many resources of the kind fired at all, and
// how many windows ended in failure.
type FireCountTracer struct {
	filter SpanFilter

	lock          sync.Mutex
	inflightSpans map[track.AsyncID]Span
	firedSpans    map[track.AsyncID]bool
	kindNames     []string
	fireCount     map[string]uint64
	spanCount     map[string]uint64
	failureCount  map[string]uint64
}

// NewFireCountTracer creates a new FireCountTracer.
func NewFireCountTracer(filter SpanFilter) *FireCountTracer {
	t := &FireCountTracer{
		filter:        filter,
		inflightSpans: make(map[track.AsyncID]Span),
		firedSpans:    make(map[track.AsyncID]bool),
		fireCount:     make(map[string]uint64),
		spanCount:     make(map[string]uint64),
		failureCount:  make(map[string]uint64),
	}

	return t
}

// KindNames returns all the kind names seen firing, in first-seen order.
func (t *FireCountTracer) KindNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string{}, t.kindNames...)
}

// FireCount returns the number of callback windows recorded for a kind.
func (t *FireCountTracer) FireCount(kindName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.fireCount[kindName]
}

// SpanCount returns the number of resources of a kind that fired at least
// once.
func (t *FireCountTracer) SpanCount(kindName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.spanCount[kindName]
}

// FailureCount returns the number of failed windows recorded for a kind.
func (t *FireCountTracer) FailureCount(kindName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.failureCount[kindName]
}

// StartSpan starts following the span.
func (t *FireCountTracer) StartSpan(span Span) {
	if !t.filter(span) {
		return
	}

	t.lock.Lock()
	t.inflightSpans[span.ID] = span
	t.lock.Unlock()
}

// EnterSpan counts one fire for the kind of the span.
func (t *FireCountTracer) EnterSpan(id track.AsyncID) {
	t.lock.Lock()
	defer t.lock.Unlock()

	span, ok := t.inflightSpans[id]
	if !ok {
		return
	}

	t.countFire(span)
	t.countSpan(span)
}

func (t *FireCountTracer) countFire(span Span) {
	_, ok := t.fireCount[span.Kind]
	if !ok {
		t.kindNames = append(t.kindNames, span.Kind)
	}

	t.fireCount[span.Kind]++
}

func (t *FireCountTracer) countSpan(span Span) {
	if t.firedSpans[span.ID] {
		return
	}

	t.firedSpans[span.ID] = true
	t.spanCount[span.Kind]++
}

// ExitSpan counts failed windows.
func (t *FireCountTracer) ExitSpan(id track.AsyncID, failed bool) {
	if !failed {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	span, ok := t.inflightSpans[id]
	if !ok {
		return
	}

	t.failureCount[span.Kind]++
}

// EndSpan stops following the span.
func (t *FireCountTracer) EndSpan(span Span) {
	t.lock.Lock()
	defer t.lock.Unlock()

	_, ok := t.inflightSpans[span.ID]
	if !ok {
		return
	}

	delete(t.inflightSpans, span.ID)
	delete(t.firedSpans, span.ID)
}
