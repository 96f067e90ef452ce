package tracing

import (
	"log"

	"github.com/tracelab/strand/track"
)

// LogTracer prints every lifecycle transition into a logger. It is the
// tracer to reach for when debugging resource behavior.
type LogTracer struct {
	logger *log.Logger
}

// NewLogTracer returns a new LogTracer which will write into the logger.
func NewLogTracer(logger *log.Logger) *LogTracer {
	t := new(LogTracer)
	t.logger = logger

	return t
}

func (t *LogTracer) StartSpan(span Span) {
	t.logger.Printf("%.10f, init %s, %s, parent %s",
		span.CreatedAt, span.ID, span.Kind, span.Parent)
}

func (t *LogTracer) EnterSpan(id track.AsyncID) {
	t.logger.Printf("enter %s", id)
}

func (t *LogTracer) ExitSpan(id track.AsyncID, failed bool) {
	if failed {
		t.logger.Printf("exit %s, failed", id)
		return
	}

	t.logger.Printf("exit %s", id)
}

func (t *LogTracer) EndSpan(span Span) {
	t.logger.Printf("%.10f, destroy %s", span.DestroyedAt, span.ID)
}
