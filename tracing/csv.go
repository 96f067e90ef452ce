package tracing

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"
	"github.com/tracelab/strand/track"
)

// CSVTracer is a tracer that stores finished spans into a CSV file.
type CSVTracer struct {
	path string
	file *os.File

	openSpans  map[track.AsyncID]Span
	rows       []Span
	bufferSize int
}

// NewCSVTracer creates a new CSVTracer. Init must be called before the
// tracer is attached to a tracker.
func NewCSVTracer(path string) *CSVTracer {
	return &CSVTracer{
		path:       path,
		openSpans:  make(map[track.AsyncID]Span),
		bufferSize: 1000,
	}
}

// Init creates the tracing csv file. If the file already exists, it will be
// overwritten.
func (t *CSVTracer) Init() {
	file, err := os.Create(t.path)
	if err != nil {
		panic(err)
	}
	t.file = file

	fmt.Fprintf(file, "ID, Kind, Subsystem, ParentID, CreatedAt, DestroyedAt\n")

	atexit.Register(func() {
		t.Flush()
		err := t.file.Close()
		if err != nil {
			panic(err)
		}
	})
}

// StartSpan keeps the creation-time description of the span.
func (t *CSVTracer) StartSpan(span Span) {
	t.openSpans[span.ID] = span
}

// EnterSpan does nothing.
func (t *CSVTracer) EnterSpan(_ track.AsyncID) {
	// Do nothing
}

// ExitSpan does nothing.
func (t *CSVTracer) ExitSpan(_ track.AsyncID, _ bool) {
	// Do nothing
}

// EndSpan buffers the finished span for writing.
func (t *CSVTracer) EndSpan(span Span) {
	open, ok := t.openSpans[span.ID]
	if !ok {
		return
	}

	open.DestroyedAt = span.DestroyedAt
	delete(t.openSpans, span.ID)

	t.rows = append(t.rows, open)
	if len(t.rows) >= t.bufferSize {
		t.Flush()
	}
}

// Flush writes the buffered spans to the CSV file.
func (t *CSVTracer) Flush() {
	for _, span := range t.rows {
		fmt.Fprintf(t.file, "%s, %s, %s, %s, %.10f, %.10f\n",
			span.ID,
			span.Kind,
			span.Subsystem,
			span.Parent,
			span.CreatedAt,
			span.DestroyedAt,
		)
	}

	t.rows = nil
}
