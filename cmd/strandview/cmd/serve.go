package cmd

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/tracelab/strand/datarecording"
)

//go:embed viewer.html
var viewerPage []byte

var serveCmd = &cobra.Command{
	Use:   "serve [trace file]",
	Short: "Serve a recorded trace database to a browser.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := &viewerServer{
			reader: datarecording.NewReader(args[0]),
		}

		port, _ := cmd.Flags().GetInt("port")
		openBrowser, _ := cmd.Flags().GetBool("open")

		r := mux.NewRouter()
		r.HandleFunc("/api/tables", s.listTables)
		r.HandleFunc("/api/run", s.runInfo)
		r.HandleFunc("/api/sessions", s.sessions)
		r.HandleFunc("/api/spans/{table}", s.spans)
		r.HandleFunc("/", s.home)

		listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
		if err != nil {
			log.Fatal(err)
		}

		url := fmt.Sprintf("http://localhost:%d",
			listener.Addr().(*net.TCPAddr).Port)
		fmt.Fprintf(os.Stderr, "Serving %s at %s\n", args[0], url)

		if openBrowser {
			_ = browser.OpenURL(url)
		}

		err = http.Serve(listener, r)
		if err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	serveCmd.Flags().Int("port", 0,
		"port to listen on, 0 picks a free port")
	serveCmd.Flags().Bool("open", false,
		"open the viewer in a browser")
	rootCmd.AddCommand(serveCmd)
}

type viewerServer struct {
	reader datarecording.DataReader
}

func (s *viewerServer) home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	_, err := w.Write(viewerPage)
	if err != nil {
		log.Panic(err)
	}
}

func (s *viewerServer) writeJSON(w http.ResponseWriter, v any) {
	rspBytes, err := json.Marshal(v)
	if err != nil {
		log.Panic(err)
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(rspBytes)
	if err != nil {
		log.Panic(err)
	}
}

func (s *viewerServer) listTables(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.reader.ListTables())
}

func (s *viewerServer) runInfo(w http.ResponseWriter, r *http.Request) {
	rows := make([]runInfoRow, 0)

	if hasTable(s.reader, "run_info") {
		s.reader.MapTable("run_info", runInfoRow{})

		results, _, err := s.reader.Query(
			r.Context(), "run_info", datarecording.QueryParams{})
		if err != nil {
			log.Panic(err)
		}

		for _, res := range results {
			rows = append(rows, *res.(*runInfoRow))
		}
	}

	s.writeJSON(w, rows)
}

func (s *viewerServer) sessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, listSessions(s.reader))
}

type spansRsp struct {
	Total int       `json:"total"`
	Spans []spanRow `json:"spans"`
}

func (s *viewerServer) spans(w http.ResponseWriter, r *http.Request) {
	tableName := mux.Vars(r)["table"]

	params := datarecording.QueryParams{
		OrderBy: "CreatedAt",
	}

	if kind := r.URL.Query().Get("kind"); kind != "" {
		params.Where = "Kind = ?"
		params.Args = append(params.Args, kind)
	}

	params.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	params.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	if params.Limit == 0 {
		params.Limit = 1000
	}

	s.reader.MapTable(tableName, spanRow{})

	results, total, err := s.reader.Query(r.Context(), tableName, params)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "cannot query table %s: %s", tableName, err)
		return
	}

	rsp := spansRsp{
		Total: total,
		Spans: make([]spanRow, 0, len(results)),
	}

	for _, res := range results {
		rsp.Spans = append(rsp.Spans, *res.(*spanRow))
	}

	s.writeJSON(w, rsp)
}
