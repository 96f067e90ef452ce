package tracing

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tracelab/strand/datarecording"
	"github.com/tracelab/strand/track"
)

var _ = Describe("DBTracer", func() {
	var (
		timeTeller *testTimeTeller
		recorder   datarecording.DataRecorder
		tracer     *DBTracer
	)

	BeforeEach(func() {
		timeTeller = &testTimeTeller{}
		dbPath := filepath.Join(GinkgoT().TempDir(), "trace_test")
		recorder = datarecording.NewDataRecorder(dbPath)
		tracer = NewDBTracer(timeTeller, recorder)
	})

	AfterEach(func() {
		recorder.Close()
	})

	It("should follow spans between creation and destruction", func() {
		tracer.StartSpan(Span{ID: 1, Kind: "loop.timer", CreatedAt: 1.0})

		Expect(tracer.openSpans).To(HaveLen(1))

		tracer.EndSpan(Span{ID: 1, DestroyedAt: 2.0})

		Expect(tracer.openSpans).To(BeEmpty())
	})

	It("should count fires and failures on open spans", func() {
		tracer.StartSpan(Span{ID: 1, Kind: "loop.timer", CreatedAt: 1.0})

		tracer.EnterSpan(1)
		tracer.ExitSpan(1, false)
		tracer.EnterSpan(1)
		tracer.ExitSpan(1, true)

		open := tracer.openSpans[1]
		Expect(open.fires).To(Equal(int64(2)))
		Expect(open.failures).To(Equal(int64(1)))
	})

	It("should create one table per session", func() {
		timeTeller.SetCurrentTime(1.0)
		tracer.EnableTracing()

		Expect(tracer.IsTracing()).To(BeTrue())
		Expect(recorder.ListTables()).To(ContainElement("trace1"))

		timeTeller.SetCurrentTime(2.0)
		tracer.StopTracingAtCurrentTime()

		Expect(tracer.IsTracing()).To(BeFalse())

		timeTeller.SetCurrentTime(3.0)
		tracer.EnableTracing()

		Expect(recorder.ListTables()).To(ContainElement("trace2"))
	})

	It("should keep live spans across sessions", func() {
		timeTeller.SetCurrentTime(1.0)
		tracer.StartSpan(Span{ID: 1, Kind: "loop.timer", CreatedAt: 1.0})
		tracer.EnableTracing()

		timeTeller.SetCurrentTime(2.0)
		tracer.StopTracingAtCurrentTime()

		Expect(tracer.openSpans).To(HaveKey(track.AsyncID(1)))
	})

	It("should drop spans outside the time range", func() {
		tracer.SetTimeRange(2.0, 3.0)

		tracer.StartSpan(Span{ID: 1, Kind: "loop.timer", CreatedAt: 5.0})
		Expect(tracer.openSpans).To(BeEmpty())

		tracer.StartSpan(Span{ID: 2, Kind: "loop.timer", CreatedAt: 0.5})
		tracer.EndSpan(Span{ID: 2, DestroyedAt: 1.0})
		Expect(tracer.openSpans).To(BeEmpty())
	})

	It("should refuse spans without an id or a kind", func() {
		Expect(func() {
			tracer.StartSpan(Span{Kind: "loop.timer"})
		}).To(Panic())

		Expect(func() {
			tracer.StartSpan(Span{ID: 1})
		}).To(Panic())
	})
})
