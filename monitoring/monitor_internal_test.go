package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tracelab/strand/loop"
	"github.com/tracelab/strand/track"
)

var kindMonitored = track.RegisterKind("monitoring.test.conn", track.SubsystemTest)

type sampleConn struct {
	Addr  string
	Bytes int
}

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		tracker *track.Tracker
		l       *loop.Loop
	)

	BeforeEach(func() {
		tracker = track.NewTracker()
		l = loop.New(tracker)

		m = NewMonitor()
		m.RegisterTracker(tracker)
		m.RegisterLoop(l)
	})

	It("should refuse privileged port numbers", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should report the current time", func() {
		w := httptest.NewRecorder()

		m.now(w, nil)

		Expect(w.Body.String()).To(Equal(`{"now":0.0000000000}`))
	})

	It("should report pending events", func() {
		l.Post(func() error { return nil })

		w := httptest.NewRecorder()

		m.pendingEvents(w, nil)

		Expect(w.Body.String()).To(Equal(`{"timed":0,"immediate":1}`))
	})

	It("should list live resources", func() {
		conn := &sampleConn{Addr: "10.0.0.1:443"}
		id := tracker.NewID()
		_, err := tracker.EmitInit(id, kindMonitored, track.NewHandleRef(conn))
		Expect(err).ToNot(HaveOccurred())

		w := httptest.NewRecorder()

		m.listLiveResources(w, nil)

		var records []map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &records)).To(Succeed())
		Expect(records).To(HaveLen(1))
		Expect(records[0]["kind"]).To(Equal("monitoring.test.conn"))
		Expect(records[0]["state"]).To(Equal("live"))
		Expect(records[0]["handle_alive"]).To(Equal(true))

		runtime.KeepAlive(conn)
	})

	It("should serve the record and the handle of one resource", func() {
		conn := &sampleConn{Addr: "10.0.0.1:443", Bytes: 88}
		id := tracker.NewID()
		_, err := tracker.EmitInit(id, kindMonitored, track.NewHandleRef(conn))
		Expect(err).ToNot(HaveOccurred())

		req := httptest.NewRequest(
			http.MethodGet, "/api/resource/"+id.String(), nil)
		req = mux.SetURLVars(req, map[string]string{"id": id.String()})
		w := httptest.NewRecorder()

		m.resourceDetails(w, req)

		var rsp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())

		record := rsp["record"].(map[string]any)
		Expect(record["id"]).To(BeNumerically("==", int64(id)))
		Expect(rsp["handle"]).ToNot(BeNil())

		runtime.KeepAlive(conn)
	})

	It("should return 404 for an unknown resource", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/resource/99", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "99"})
		w := httptest.NewRecorder()

		m.resourceDetails(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should return 400 for a malformed resource id", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/resource/nope", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "nope"})
		w := httptest.NewRecorder()

		m.resourceDetails(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should show the context stack", func() {
		conn := &sampleConn{}
		id := tracker.NewID()
		stor, err := tracker.EmitInit(id, kindMonitored, track.NewHandleRef(conn))
		Expect(err).ToNot(HaveOccurred())
		Expect(tracker.EmitBefore(id, stor)).To(Succeed())

		w := httptest.NewRecorder()

		m.showStack(w, nil)

		var rsp stackRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Current).To(Equal(id))
		Expect(rsp.Stack).To(Equal([]track.AsyncID{id}))

		Expect(tracker.EmitAfter(id, stor, false)).To(Succeed())
		runtime.KeepAlive(conn)
	})

	It("should show an empty stack as an empty list", func() {
		w := httptest.NewRecorder()

		m.showStack(w, nil)

		Expect(w.Body.String()).To(Equal(`{"current":0,"stack":[]}`))
	})

	It("should list hooks", func() {
		tracker.Register(track.HookFuncs{
			Init: func(_ track.AsyncID, _ *track.Kind, _ track.AsyncID, _ track.HandleRef) {},
			Destroy: func(_ track.AsyncID) {},
		}).Enable()

		w := httptest.NewRecorder()

		m.listHooks(w, nil)

		var hooks []map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &hooks)).To(Succeed())
		Expect(hooks).To(HaveLen(1))
		Expect(hooks[0]["ops"]).To(Equal("init,destroy"))
		Expect(hooks[0]["enabled"]).To(Equal(true))
	})

	It("should list registered kinds", func() {
		w := httptest.NewRecorder()

		m.listKinds(w, nil)

		var kinds []kindRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &kinds)).To(Succeed())
		Expect(kinds).To(ContainElement(kindRsp{
			Name:      "monitoring.test.conn",
			Subsystem: "test",
		}))
	})
})
