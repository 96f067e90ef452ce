package tracing

import (
	"sync"

	"github.com/tracelab/strand/loop"
	"github.com/tracelab/strand/track"
)

// AverageLifetimeTracer collects the average time between the creation and
// the destruction of resources. Leaked resources never contribute; use the
// LeakTracer for those.
type AverageLifetimeTracer struct {
	filter SpanFilter

	lock            sync.Mutex
	averageLifetime loop.VTime
	inflightSpans   map[track.AsyncID]Span
	spanCount       uint64
}

// NewAverageLifetimeTracer creates a new AverageLifetimeTracer. Only spans
// accepted by the filter are measured.
func NewAverageLifetimeTracer(filter SpanFilter) *AverageLifetimeTracer {
	t := &AverageLifetimeTracer{
		filter:        filter,
		inflightSpans: make(map[track.AsyncID]Span),
	}

	return t
}

// AverageLifetime returns the average time the measured resources lived for.
func (t *AverageLifetimeTracer) AverageLifetime() loop.VTime {
	t.lock.Lock()
	lifetime := t.averageLifetime
	t.lock.Unlock()

	return lifetime
}

// TotalCount returns the number of completed spans measured so far.
func (t *AverageLifetimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.spanCount
}

// StartSpan records the creation time of the span.
func (t *AverageLifetimeTracer) StartSpan(span Span) {
	if !t.filter(span) {
		return
	}

	t.lock.Lock()
	t.inflightSpans[span.ID] = span
	t.lock.Unlock()
}

// EnterSpan does nothing.
func (t *AverageLifetimeTracer) EnterSpan(_ track.AsyncID) {
	// Do nothing
}

// ExitSpan does nothing.
func (t *AverageLifetimeTracer) ExitSpan(_ track.AsyncID, _ bool) {
	// Do nothing
}

// EndSpan records the end of the span and folds its lifetime into the
// average.
func (t *AverageLifetimeTracer) EndSpan(span Span) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalSpan, ok := t.inflightSpans[span.ID]
	if !ok {
		return
	}

	lifetime := span.DestroyedAt - originalSpan.CreatedAt
	t.averageLifetime = loop.VTime(
		(float64(t.averageLifetime)*float64(t.spanCount) + float64(lifetime)) /
			float64(t.spanCount+1))
	delete(t.inflightSpans, span.ID)
	t.spanCount++
}
