package host

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/xid"

	"github.com/tracelab/strand/datarecording"
	"github.com/tracelab/strand/loop"
	"github.com/tracelab/strand/monitoring"
	"github.com/tracelab/strand/tracing"
	"github.com/tracelab/strand/track"
)

// Builder can be used to build a host.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	outputFileName string
	removalMode    track.RemovalMode
	reviveRemoved  bool
	leakBacktraces bool
	envFile        string
}

// MakeBuilder creates a new builder with monitoring enabled.
func MakeBuilder() Builder {
	return Builder{
		monitorOn: true,
	}
}

// WithoutMonitoring sets the host to not start the monitoring server.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithRemovalMode sets what removing a hook means for resources that
// captured it earlier.
func (b Builder) WithRemovalMode(m track.RemovalMode) Builder {
	b.removalMode = m
	return b
}

// WithRemovedHookRevival allows removed hooks to be enabled again.
func (b Builder) WithRemovedHookRevival() Builder {
	b.reviveRemoved = true
	return b
}

// WithLeakBacktraces makes the leak tracer record a creation backtrace for
// every live resource.
func (b Builder) WithLeakBacktraces() Builder {
	b.leakBacktraces = true
	return b
}

// WithEnvFile loads environment overrides from the given file when the host
// is built.
func (b Builder) WithEnvFile(path string) Builder {
	b.envFile = path
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the host.
func (b Builder) Build() *Host {
	b.parametersMustBeValid()
	b = b.applyEnvOverrides()

	h := &Host{}
	h.id = xid.New().String()

	h.tracker = track.NewTracker().WithRemovalMode(b.removalMode)
	if b.reviveRemoved {
		h.tracker.WithRemovedHookRevival(true)
	}

	h.loop = loop.New(h.tracker)

	h.recorder = b.buildRecorder(h.id)

	h.dbTracer = tracing.NewDBTracer(h.loop, h.recorder)
	h.observations = append(h.observations,
		tracing.Observe(h.tracker, h.loop, h.dbTracer))

	h.leakTracer = tracing.NewLeakTracer(b.leakBacktraces)
	h.observations = append(h.observations,
		tracing.Observe(h.tracker, h.loop, h.leakTracer))

	if b.monitorOn {
		h.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			h.monitor.WithPortNumber(b.monitorPort)
		}
		h.monitor.RegisterTracker(h.tracker)
		h.monitor.RegisterLoop(h.loop)
		h.monitor.StartServer()
	}

	return h
}

func (b Builder) applyEnvOverrides() Builder {
	if b.envFile != "" {
		err := godotenv.Load(b.envFile)
		if err != nil {
			panic(err)
		}
	}

	if v := os.Getenv("STRAND_MONITOR_PORT"); v != "" &&
		b.monitorOn && b.monitorPort == 0 {
		port, err := strconv.Atoi(v)
		if err != nil {
			panic(fmt.Sprintf("invalid STRAND_MONITOR_PORT %q", v))
		}

		b.monitorPort = port
	}

	if v := os.Getenv("STRAND_TRACE_FILE"); v != "" && b.outputFileName == "" {
		b.outputFileName = v
	}

	if v := os.Getenv("STRAND_LEAK_BACKTRACE"); v == "true" || v == "1" {
		b.leakBacktraces = true
	}

	return b
}

func (b Builder) buildRecorder(id string) datarecording.DataRecorder {
	if dsn := os.Getenv("STRAND_CLICKHOUSE_DSN"); dsn != "" {
		return datarecording.NewDataRecorderWithConfig(
			datarecording.RecorderConfig{
				Type:    "clickhouse",
				ConnStr: dsn,
			})
	}

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "strand_host_" + id
	}

	return datarecording.NewDataRecorder(outputPath)
}
