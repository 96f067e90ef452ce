// Package host assembles a tracker, an event loop, a data recorder, the
// built-in tracers and the monitor into one runnable unit.
package host

import (
	"github.com/tracelab/strand/datarecording"
	"github.com/tracelab/strand/loop"
	"github.com/tracelab/strand/monitoring"
	"github.com/tracelab/strand/tracing"
	"github.com/tracelab/strand/track"
)

// A Host provides the services that a tracked program needs.
type Host struct {
	id string

	tracker  *track.Tracker
	loop     *loop.Loop
	recorder datarecording.DataRecorder
	monitor  *monitoring.Monitor

	dbTracer   *tracing.DBTracer
	leakTracer *tracing.LeakTracer

	observations []*tracing.Observation
}

// ID returns the unique id of this host instance.
func (h *Host) ID() string {
	return h.id
}

// GetTracker returns the tracker of the host.
func (h *Host) GetTracker() *track.Tracker {
	return h.tracker
}

// GetLoop returns the event loop of the host.
func (h *Host) GetLoop() *loop.Loop {
	return h.loop
}

// GetDataRecorder returns the data recorder used by the host.
func (h *Host) GetDataRecorder() datarecording.DataRecorder {
	return h.recorder
}

// GetMonitor returns the monitor of the host, or nil if monitoring is
// disabled.
func (h *Host) GetMonitor() *monitoring.Monitor {
	return h.monitor
}

// GetDBTracer returns the tracer that records lifecycle spans to the data
// recorder.
func (h *Host) GetDBTracer() *tracing.DBTracer {
	return h.dbTracer
}

// GetLeakTracer returns the tracer that keeps the set of live resources.
func (h *Host) GetLeakTracer() *tracing.LeakTracer {
	return h.leakTracer
}

// AttachTracer attaches an extra tracer to the tracker of this host.
func (h *Host) AttachTracer(t tracing.Tracer) *tracing.Observation {
	obs := tracing.Observe(h.tracker, h.loop, t)
	h.observations = append(h.observations, obs)

	return obs
}

// Terminate ends the host, flushing and closing the data recorder.
func (h *Host) Terminate() {
	err := h.recorder.Close()
	if err != nil {
		panic(err)
	}
}
