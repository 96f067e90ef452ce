package tracing

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tracelab/strand/track"
)

var _ = Describe("LogTracer", func() {
	It("should print every transition", func() {
		var buf bytes.Buffer
		tracer := NewLogTracer(log.New(&buf, "", 0))

		tracer.StartSpan(Span{
			ID: 1, Kind: "loop.timer", Parent: track.None, CreatedAt: 1.0,
		})
		tracer.EnterSpan(1)
		tracer.ExitSpan(1, true)
		tracer.EndSpan(Span{ID: 1, DestroyedAt: 2.0})

		Expect(buf.String()).To(Equal(
			"1.0000000000, init 1, loop.timer, parent none\n" +
				"enter 1\n" +
				"exit 1, failed\n" +
				"2.0000000000, destroy 1\n"))
	})
})

var _ = Describe("AverageLifetimeTracer", func() {
	It("should average the lifetime of completed spans", func() {
		tracer := NewAverageLifetimeTracer(AcceptAll)

		tracer.StartSpan(Span{ID: 1, Kind: "loop.timer", CreatedAt: 1.0})
		tracer.StartSpan(Span{ID: 2, Kind: "loop.timer", CreatedAt: 2.0})
		tracer.EndSpan(Span{ID: 1, DestroyedAt: 2.0})
		tracer.EndSpan(Span{ID: 2, DestroyedAt: 5.0})

		Expect(tracer.AverageLifetime()).To(BeNumerically("~", 2.0, 1e-12))
		Expect(tracer.TotalCount()).To(Equal(uint64(2)))
	})

	It("should ignore spans rejected by the filter", func() {
		tracer := NewAverageLifetimeTracer(
			SubsystemFilter(track.SubsystemTimer))

		tracer.StartSpan(Span{
			ID: 1, Kind: "pool.parser", Subsystem: "pool", CreatedAt: 1.0,
		})
		tracer.EndSpan(Span{ID: 1, DestroyedAt: 3.0})

		Expect(tracer.TotalCount()).To(Equal(uint64(0)))
	})
})

var _ = Describe("FireCountTracer", func() {
	It("should count windows per kind", func() {
		tracer := NewFireCountTracer(AcceptAll)

		tracer.StartSpan(Span{ID: 1, Kind: "loop.ticker"})
		tracer.StartSpan(Span{ID: 2, Kind: "loop.timer"})

		tracer.EnterSpan(1)
		tracer.ExitSpan(1, false)
		tracer.EnterSpan(1)
		tracer.ExitSpan(1, true)
		tracer.EnterSpan(2)
		tracer.ExitSpan(2, false)

		Expect(tracer.KindNames()).To(Equal([]string{
			"loop.ticker", "loop.timer",
		}))
		Expect(tracer.FireCount("loop.ticker")).To(Equal(uint64(2)))
		Expect(tracer.SpanCount("loop.ticker")).To(Equal(uint64(1)))
		Expect(tracer.FailureCount("loop.ticker")).To(Equal(uint64(1)))
		Expect(tracer.FireCount("loop.timer")).To(Equal(uint64(1)))
		Expect(tracer.FailureCount("loop.timer")).To(Equal(uint64(0)))
	})

	It("should forget spans once they end", func() {
		tracer := NewFireCountTracer(AcceptAll)

		tracer.StartSpan(Span{ID: 1, Kind: "loop.timer"})
		tracer.EndSpan(Span{ID: 1})
		tracer.EnterSpan(1)

		Expect(tracer.FireCount("loop.timer")).To(Equal(uint64(0)))
	})
})

var _ = Describe("LeakTracer", func() {
	It("should report created but not destroyed resources", func() {
		tracer := NewLeakTracer(false)

		tracer.StartSpan(Span{ID: 1, Kind: "loop.timer", CreatedAt: 1.0})
		tracer.StartSpan(Span{ID: 2, Kind: "loop.ticker", CreatedAt: 2.0})
		tracer.EndSpan(Span{ID: 1})

		Expect(tracer.NumLive()).To(Equal(1))

		report := tracer.Report()
		Expect(report).To(HaveLen(1))
		Expect(report[0].Span.ID).To(Equal(track.AsyncID(2)))
		Expect(report[0].Origin).To(BeNil())
	})

	It("should capture creation origins on demand", func() {
		tracer := NewLeakTracer(true)

		tracer.StartSpan(Span{ID: 1, Kind: "loop.timer"})

		Expect(tracer.Report()[0].Origin).NotTo(BeEmpty())
	})

	It("should dump the chain of live parents", func() {
		tracer := NewLeakTracer(false)

		tracer.StartSpan(Span{ID: 1, Kind: "net.server"})
		tracer.StartSpan(Span{ID: 2, Kind: "net.conn", Parent: 1})

		var buf bytes.Buffer
		tracer.DumpChain(&buf, tracer.Report()[1].Span)

		Expect(buf.String()).To(Equal("2 net.conn\n1 net.server\n"))
	})
})
