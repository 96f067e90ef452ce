package cmd

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tracelab/strand/datarecording"
)

type spanRow struct {
	ID          int64   `json:"id"`
	Kind        string  `json:"kind"`
	Subsystem   string  `json:"subsystem"`
	ParentID    int64   `json:"parent_id"`
	CreatedAt   float64 `json:"created_at"`
	DestroyedAt float64 `json:"destroyed_at"`
	Fires       int64   `json:"fires"`
	Failures    int64   `json:"failures"`
}

type sessionRow struct {
	TableName    string  `json:"table_name"`
	SessionStart float64 `json:"session_start"`
	SessionEnd   float64 `json:"session_end"`
}

type runInfoRow struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

var reportCmd = &cobra.Command{
	Use:   "report [trace file]",
	Short: "Summarize a recorded trace database.",
	Long: `report prints the run information, the recording sessions, and ` +
		`the per-kind span statistics of a recorded trace database.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reader := datarecording.NewReader(args[0])
		defer reader.Close()

		printRunInfo(reader)

		sessions := listSessions(reader)
		printSessions(sessions)

		tableName, _ := cmd.Flags().GetString("session")
		if tableName != "" {
			end, haveEnd := sessionEndOf(sessions, tableName)
			printSessionSummary(reader, tableName, end, haveEnd)
			return
		}

		for _, s := range sessions {
			printSessionSummary(reader, s.TableName, s.SessionEnd, true)
		}
	},
}

func init() {
	reportCmd.Flags().String("session", "",
		"summarize only the given session table")
	rootCmd.AddCommand(reportCmd)
}

func hasTable(reader datarecording.DataReader, tableName string) bool {
	for _, t := range reader.ListTables() {
		if t == tableName {
			return true
		}
	}

	return false
}

func printRunInfo(reader datarecording.DataReader) {
	if !hasTable(reader, "run_info") {
		return
	}

	reader.MapTable("run_info", runInfoRow{})

	results, _, err := reader.Query(
		context.Background(), "run_info", datarecording.QueryParams{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Run:")

	for _, r := range results {
		row := r.(*runInfoRow)
		fmt.Printf("  %-18s %s\n", row.Property, row.Value)
	}

	fmt.Println()
}

func listSessions(reader datarecording.DataReader) []sessionRow {
	if !hasTable(reader, "trace") {
		return nil
	}

	reader.MapTable("trace", sessionRow{})

	results, _, err := reader.Query(
		context.Background(), "trace",
		datarecording.QueryParams{OrderBy: "SessionStart"})
	if err != nil {
		log.Fatal(err)
	}

	sessions := make([]sessionRow, 0, len(results))
	for _, r := range results {
		sessions = append(sessions, *r.(*sessionRow))
	}

	return sessions
}

func printSessions(sessions []sessionRow) {
	if len(sessions) == 0 {
		fmt.Println("No recording session in this database.")
		fmt.Println()
		return
	}

	fmt.Println("Sessions:")

	for _, s := range sessions {
		fmt.Printf("  %-10s %.10f - %.10f\n",
			s.TableName, s.SessionStart, s.SessionEnd)
	}

	fmt.Println()
}

func sessionEndOf(sessions []sessionRow, tableName string) (float64, bool) {
	for _, s := range sessions {
		if s.TableName == tableName {
			return s.SessionEnd, true
		}
	}

	return 0, false
}

type kindStats struct {
	kind     string
	count    int
	fires    int64
	failures int64
	lifetime float64
}

func printSessionSummary(
	reader datarecording.DataReader,
	tableName string,
	sessionEnd float64,
	haveEnd bool,
) {
	reader.MapTable(tableName, spanRow{})

	results, total, err := reader.Query(
		context.Background(), tableName, datarecording.QueryParams{})
	if err != nil {
		log.Fatal(err)
	}

	statsByKind := make(map[string]*kindStats)

	for _, r := range results {
		row := r.(*spanRow)

		s := statsByKind[row.Kind]
		if s == nil {
			s = &kindStats{kind: row.Kind}
			statsByKind[row.Kind] = s
		}

		s.count++
		s.fires += row.Fires
		s.failures += row.Failures
		s.lifetime += row.DestroyedAt - row.CreatedAt
	}

	kinds := make([]*kindStats, 0, len(statsByKind))
	for _, s := range statsByKind {
		kinds = append(kinds, s)
	}

	sort.Slice(kinds, func(i, j int) bool {
		if kinds[i].count != kinds[j].count {
			return kinds[i].count > kinds[j].count
		}

		return kinds[i].kind < kinds[j].kind
	})

	fmt.Printf("Session %s, %d spans:\n", tableName, total)
	fmt.Printf("  %-30s %8s %8s %8s %s\n",
		"KIND", "SPANS", "FIRES", "FAILURES", "AVG LIFETIME")

	for _, s := range kinds {
		fmt.Printf("  %-30s %8d %8d %8d %.10f\n",
			s.kind, s.count, s.fires, s.failures,
			s.lifetime/float64(s.count))
	}

	// Spans that were still live at session stop are written with the
	// session end as their destruction time. Count them as potential leaks.
	if haveEnd {
		ongoing := 0

		for _, r := range results {
			if r.(*spanRow).DestroyedAt == sessionEnd {
				ongoing++
			}
		}

		if ongoing > 0 {
			fmt.Printf("  %d spans were still live when the session ended\n",
				ongoing)
		}
	}

	fmt.Println()
}
