package tracing

import (
	"fmt"
	"sync"

	"github.com/tebeka/atexit"
	"github.com/tracelab/strand/datarecording"
	"github.com/tracelab/strand/loop"
	"github.com/tracelab/strand/track"
)

type spanTableEntry struct {
	ID          int64   `json:"id" strand_data:"index"`
	Kind        string  `json:"kind" strand_data:"index"`
	Subsystem   string  `json:"subsystem" strand_data:"index"`
	ParentID    int64   `json:"parent_id" strand_data:"index"`
	CreatedAt   float64 `json:"created_at" strand_data:"index"`
	DestroyedAt float64 `json:"destroyed_at" strand_data:"index"`
	Fires       int64   `json:"fires"`
	Failures    int64   `json:"failures"`
}

// sessionIndexEntry indexes one recording session in the trace table.
type sessionIndexEntry struct {
	TableName    string  `json:"table_name" strand_data:"unique"`
	SessionStart float64 `json:"session_start" strand_data:"index"`
	SessionEnd   float64 `json:"session_end" strand_data:"index"`
}

// openSpan is a span that has started but not yet ended, together with the
// callback counters accumulated so far.
type openSpan struct {
	span     Span
	fires    int64
	failures int64
}

// DBTracer is a tracer that stores finished spans into a database. DBTracers
// can connect with different backends (e.g., SQLite files, ClickHouse
// servers) through the datarecording package.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller loop.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime loop.VTime

	openSpans     map[track.AsyncID]*openSpan
	isTracingFlag bool

	traceCount       int
	currentTableName string
	sessionStartTime loop.VTime
	sessionEndTime   loop.VTime
}

// NewDBTracer creates a new DBTracer.
func NewDBTracer(
	timeTeller loop.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable("trace", sessionIndexEntry{})

	t := &DBTracer{
		timeTeller: timeTeller,
		backend:    dataRecorder,
		openSpans:  make(map[track.AsyncID]*openSpan),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// IsTracing returns whether a recording session is currently open.
func (t *DBTracer) IsTracing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isTracingFlag
}

// SetTimeRange sets the time range of the tracer. Spans created after the
// end time or destroyed before the start time are not recorded.
func (t *DBTracer) SetTimeRange(startTime, endTime loop.VTime) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartSpan marks the creation of a resource.
func (t *DBTracer) StartSpan(span Span) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startingSpanMustBeValid(span)

	if t.endTime > 0 && span.CreatedAt > t.endTime {
		return
	}

	t.openSpans[span.ID] = &openSpan{span: span}
}

func (t *DBTracer) startingSpanMustBeValid(span Span) {
	if span.ID == track.None {
		panic("span ID must be set")
	}

	if span.Kind == "" {
		panic("span kind must be set")
	}
}

// EnterSpan counts one callback entry on the span.
func (t *DBTracer) EnterSpan(id track.AsyncID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	open, ok := t.openSpans[id]
	if !ok {
		return
	}

	open.fires++
}

// ExitSpan counts one callback exit on the span.
func (t *DBTracer) ExitSpan(id track.AsyncID, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	open, ok := t.openSpans[id]
	if !ok {
		return
	}

	if failed {
		open.failures++
	}
}

// EndSpan marks the destruction of a resource.
func (t *DBTracer) EndSpan(span Span) {
	t.mu.Lock()
	defer t.mu.Unlock()

	destroyedAt := span.DestroyedAt

	if t.startTime > 0 && destroyedAt < t.startTime {
		delete(t.openSpans, span.ID)
		return
	}

	open, ok := t.openSpans[span.ID]
	if !ok {
		return
	}

	open.span.DestroyedAt = destroyedAt

	if t.isTracingFlag && t.currentTableName != "" {
		t.writeSpanToDB(open)
	}

	delete(t.openSpans, span.ID)
}

// EnableTracing opens a recording session at the current time. Each session
// records into its own table.
func (t *DBTracer) EnableTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isTracingFlag = true
	t.traceCount++
	t.sessionStartTime = t.timeTeller.CurrentTime()
	t.sessionEndTime = 0
	t.currentTableName = fmt.Sprintf("trace%d", t.traceCount)
	t.backend.CreateTable(t.currentTableName, spanTableEntry{})
}

// StopTracingAtCurrentTime closes the recording session. Spans that are
// still open are written with the session end as their destruction time.
func (t *DBTracer) StopTracingAtCurrentTime() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessionEndTime = t.timeTeller.CurrentTime()

	sessionIndex := sessionIndexEntry{
		TableName:    t.currentTableName,
		SessionStart: float64(t.sessionStartTime),
		SessionEnd:   float64(t.sessionEndTime),
	}
	t.backend.InsertData("trace", sessionIndex)

	t.writeOngoingSpans()

	t.isTracingFlag = false
	t.backend.Flush()
}

// Terminate terminates the tracer.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.openSpans = nil
	t.backend.Flush()
}

func (t *DBTracer) writeSpanToDB(open *openSpan) {
	entry := spanTableEntry{
		ID:          int64(open.span.ID),
		Kind:        open.span.Kind,
		Subsystem:   open.span.Subsystem,
		ParentID:    int64(open.span.Parent),
		CreatedAt:   float64(open.span.CreatedAt),
		DestroyedAt: float64(open.span.DestroyedAt),
		Fires:       open.fires,
		Failures:    open.failures,
	}
	t.backend.InsertData(t.currentTableName, entry)
}

func (t *DBTracer) writeOngoingSpans() {
	if !t.isTracingFlag || t.currentTableName == "" {
		return
	}

	for _, open := range t.openSpans {
		if open.span.CreatedAt <= t.sessionEndTime {
			ongoing := *open
			ongoing.span.DestroyedAt = t.sessionEndTime
			t.writeSpanToDB(&ongoing)
		}
	}
}
