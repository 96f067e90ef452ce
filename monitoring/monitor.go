// Package monitoring turns a live tracking host into a web server, so that
// the set of live resources, the context stack, and the hook registry can be
// inspected from a browser while the host runs.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/tracelab/strand/loop"
	"github.com/tracelab/strand/monitoring/web"
	"github.com/tracelab/strand/track"
)

// Monitor exposes a tracker and its loop over HTTP for external inspection
// and control.
type Monitor struct {
	tracker    *track.Tracker
	loop       *loop.Loop
	portNumber int
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterTracker registers the tracker to be inspected.
func (m *Monitor) RegisterTracker(t *track.Tracker) {
	m.tracker = t
}

// RegisterLoop registers the loop that drives the host.
func (m *Monitor) RegisterLoop(l *loop.Loop) {
	m.loop = l
}

// StartServer starts the monitor as a web server, on the configured port or
// on a random free one.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/pause", m.pauseLoop)
	r.HandleFunc("/api/continue", m.continueLoop)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/pending", m.pendingEvents)
	r.HandleFunc("/api/resources", m.listLiveResources)
	r.HandleFunc("/api/resource/{id}", m.resourceDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/hooks", m.listHooks)
	r.HandleFunc("/api/stack", m.showStack)
	r.HandleFunc("/api/kinds", m.listKinds)
	r.HandleFunc("/api/process", m.processStats)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	fmt.Fprintf(
		os.Stderr,
		"Monitoring host with http://localhost:%d\n",
		listener.Addr().(*net.TCPAddr).Port)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (m *Monitor) pauseLoop(w http.ResponseWriter, _ *http.Request) {
	m.loop.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueLoop(w http.ResponseWriter, _ *http.Request) {
	m.loop.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.loop.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) pendingEvents(w http.ResponseWriter, _ *http.Request) {
	timed, immediate := m.loop.PendingEvents()
	fmt.Fprintf(w, "{\"timed\":%d,\"immediate\":%d}", timed, immediate)
}

func (m *Monitor) listLiveResources(w http.ResponseWriter, _ *http.Request) {
	rspBytes, err := json.Marshal(m.tracker.LiveRecords())
	dieOnErr(err)

	_, err = w.Write(rspBytes)
	dieOnErr(err)
}

func (m *Monitor) resourceDetails(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]

	n, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid resource id: %s", idStr)
		return
	}

	view, ok := m.tracker.LookupByID(track.AsyncID(n))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Resource not found"))
		dieOnErr(err)
		return
	}

	recordJSON, err := json.Marshal(view)
	dieOnErr(err)

	fmt.Fprint(w, "{\"record\":")
	_, err = w.Write(recordJSON)
	dieOnErr(err)

	fmt.Fprint(w, ",\"handle\":")

	handle := m.tracker.Handle(view.ID)
	if handle == nil {
		fmt.Fprint(w, "null")
	} else {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(handle)
		serializer.SetMaxDepth(1)

		err := serializer.Serialize(w)
		dieOnErr(err)
	}

	fmt.Fprint(w, "}")
}

type fieldReq struct {
	ID        int64  `json:"id,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	dieOnErr(err)

	handle := m.tracker.Handle(track.AsyncID(req.ID))
	if handle == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Resource not found or handle collected"))
		dieOnErr(err)
		return
	}

	fields := strings.Split(req.FieldName, ".")

	serializer := goseth.NewSerializer()
	serializer.SetRoot(handle)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(fields)
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listHooks(w http.ResponseWriter, _ *http.Request) {
	rspBytes, err := json.Marshal(m.tracker.Hooks())
	dieOnErr(err)

	_, err = w.Write(rspBytes)
	dieOnErr(err)
}

type stackRsp struct {
	Current track.AsyncID   `json:"current"`
	Stack   []track.AsyncID `json:"stack"`
}

func (m *Monitor) showStack(w http.ResponseWriter, _ *http.Request) {
	stack := m.tracker.Stack()
	if stack == nil {
		stack = []track.AsyncID{}
	}

	rsp := stackRsp{
		Current: m.tracker.CurrentID(),
		Stack:   stack,
	}

	rspBytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(rspBytes)
	dieOnErr(err)
}

type kindRsp struct {
	Name      string `json:"name"`
	Subsystem string `json:"subsystem"`
}

func (m *Monitor) listKinds(w http.ResponseWriter, _ *http.Request) {
	kinds := track.Kinds()

	rsp := make([]kindRsp, 0, len(kinds))
	for _, k := range kinds {
		rsp = append(rsp, kindRsp{
			Name:      k.Name,
			Subsystem: string(k.Subsystem),
		})
	}

	rspBytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(rspBytes)
	dieOnErr(err)
}

type processRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) processStats(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	rsp := processRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	}

	rspBytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(rspBytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	rspBytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(rspBytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
