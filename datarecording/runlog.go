package datarecording

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// runInfo is one property of the recorded program run.
type runInfo struct {
	Property string
	Value    string
}

// runRecorder logs the surrounding program execution into the run_info
// table: when the run started and ended, and what command produced it.
type runRecorder struct {
	tableName string
	recorder  DataRecorder
	entries   []runInfo
}

func newRunRecorder(recorder DataRecorder) *runRecorder {
	r := &runRecorder{
		tableName: "run_info",
		recorder:  recorder,
	}

	r.recorder.CreateTable(r.tableName, runInfo{})

	return r
}

// Start collects the properties of the current run.
func (r *runRecorder) Start() {
	startTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	r.entries = append(r.entries, runInfo{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	r.entries = append(r.entries, runInfo{"Command", cmd})

	wd, err := os.Getwd()
	if err == nil {
		r.entries = append(r.entries, runInfo{"Working Directory", wd})
	}

	r.entries = append(r.entries,
		runInfo{"Process ID", strconv.Itoa(os.Getpid())})
}

// End writes the collected properties along with the end time.
func (r *runRecorder) End() {
	for _, entry := range r.entries {
		r.recorder.InsertData(r.tableName, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	r.recorder.InsertData(r.tableName, runInfo{"End Time", endTime})

	r.entries = nil

	r.recorder.Flush()
}
