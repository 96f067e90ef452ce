// Package tracing turns raw lifecycle notifications into spans and feeds
// them to consumers: log printing, lifetime statistics, fire counting, leak
// reporting, and database recording. Attach a consumer to a tracker with
// Observe.
package tracing

import (
	"github.com/tracelab/strand/loop"
	"github.com/tracelab/strand/track"
)

// A Span describes one identity of a tracked resource, from creation to
// destruction. Pooled resources produce one span per reuse cycle.
type Span struct {
	ID          track.AsyncID `json:"id"`
	Kind        string        `json:"kind"`
	Subsystem   string        `json:"subsystem"`
	Parent      track.AsyncID `json:"parent"`
	CreatedAt   loop.VTime    `json:"created_at"`
	DestroyedAt loop.VTime    `json:"destroyed_at"`
}

// A Tracer consumes lifecycle notifications. StartSpan carries the full
// creation-time description; EndSpan carries only the id and the destruction
// time, so tracers correlate by id.
type Tracer interface {
	StartSpan(span Span)
	EnterSpan(id track.AsyncID)
	ExitSpan(id track.AsyncID, failed bool)
	EndSpan(span Span)
}

// SpanFilter is a function that can filter interesting spans. If this
// function returns true, the span is considered useful.
type SpanFilter func(s Span) bool

// AcceptAll is the filter that keeps every span.
func AcceptAll(_ Span) bool {
	return true
}

// KindFilter keeps the spans of one resource kind.
func KindFilter(kind *track.Kind) SpanFilter {
	return func(s Span) bool {
		return s.Kind == kind.Name
	}
}

// SubsystemFilter keeps the spans of one subsystem.
func SubsystemFilter(sub track.Subsystem) SpanFilter {
	return func(s Span) bool {
		return s.Subsystem == string(sub)
	}
}
