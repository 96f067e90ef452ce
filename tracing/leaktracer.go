package tracing

import (
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/tracelab/strand/track"
)

// A LeakRecord is one live resource together with the place it was created.
type LeakRecord struct {
	Span   Span
	Origin []byte
}

// LeakTracer keeps the set of created but not yet destroyed resources. At
// any point, Report returns the current set; everything still in it when the
// host winds down has leaked. With origin capture on, each record carries
// the creation stack trace.
type LeakTracer struct {
	captureOrigins bool

	lock      sync.Mutex
	liveSpans map[track.AsyncID]LeakRecord
}

// NewLeakTracer creates a new LeakTracer. With captureOrigins, the creation
// stack of every resource is recorded, which costs time and memory but names
// the leaking call site.
func NewLeakTracer(captureOrigins bool) *LeakTracer {
	t := &LeakTracer{
		captureOrigins: captureOrigins,
		liveSpans:      make(map[track.AsyncID]LeakRecord),
	}

	return t
}

// StartSpan adds the span to the live set.
func (t *LeakTracer) StartSpan(span Span) {
	rec := LeakRecord{Span: span}
	if t.captureOrigins {
		rec.Origin = debug.Stack()
	}

	t.lock.Lock()
	t.liveSpans[span.ID] = rec
	t.lock.Unlock()
}

// EnterSpan does nothing.
func (t *LeakTracer) EnterSpan(_ track.AsyncID) {
	// Do nothing
}

// ExitSpan does nothing.
func (t *LeakTracer) ExitSpan(_ track.AsyncID, _ bool) {
	// Do nothing
}

// EndSpan removes the span from the live set.
func (t *LeakTracer) EndSpan(span Span) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.liveSpans, span.ID)
}

// NumLive returns the size of the live set.
func (t *LeakTracer) NumLive() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.liveSpans)
}

// Report returns the live set ordered by id.
func (t *LeakTracer) Report() []LeakRecord {
	t.lock.Lock()
	defer t.lock.Unlock()

	out := make([]LeakRecord, 0, len(t.liveSpans))
	for _, rec := range t.liveSpans {
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Span.ID < out[j].Span.ID
	})

	return out
}

// PrintReport writes a human readable leak report to w.
func (t *LeakTracer) PrintReport(w io.Writer) {
	records := t.Report()

	fmt.Fprintf(w, "%d resource(s) still live\n", len(records))

	for _, rec := range records {
		fmt.Fprintf(w, "%s %s created at %.10f\n",
			rec.Span.ID, rec.Span.Kind, rec.Span.CreatedAt)

		if rec.Origin != nil {
			fmt.Fprintf(w, "%s\n", rec.Origin)
		}
	}
}

// DumpChain writes the parent chain of one live span to w, innermost first.
// It stops at the first parent that is no longer live.
func (t *LeakTracer) DumpChain(w io.Writer, span Span) {
	fmt.Fprintf(w, "%s %s\n", span.ID, span.Kind)

	if span.Parent == track.None {
		return
	}

	t.lock.Lock()
	parent, ok := t.liveSpans[span.Parent]
	t.lock.Unlock()

	if !ok {
		return
	}

	t.DumpChain(w, parent.Span)
}
