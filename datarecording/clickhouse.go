package datarecording

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

type tableType int

const (
	tableTypeSpan tableType = iota
	tableTypeSession
	tableTypeRunInfo
)

// Internal row types that match the external ones.
type spanRowDB struct {
	ID          int64
	Kind        string
	Subsystem   string
	ParentID    int64
	CreatedAt   float64
	DestroyedAt float64
	Fires       int64
	Failures    int64
}

type sessionRowDB struct {
	TableName    string
	SessionStart float64
	SessionEnd   float64
}

// chTable buffers the rows of one table. Each table keeps its own batch so
// that multiple tables of the same type do not mix rows.
type chTable struct {
	tableType tableType

	spanRows    []spanRowDB
	sessionRows []sessionRowDB
	runRows     []runInfo
}

// ClickHouseRecorder is a DataRecorder that writes into a ClickHouse server.
// It avoids reflection on the hot path and uses type-specific batch
// handlers. Only the trace schema is supported: span tables, the session
// index, and the run log.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*chTable
	entryCount int

	run *runRecorder
}

// NewClickHouseRecorder connects to a ClickHouse server and returns a
// recorder writing into it. A zero batchSize picks the default.
func NewClickHouseRecorder(
	host string,
	port int,
	database string,
	username string,
	password string,
	batchSize int,
) DataRecorder {
	if batchSize == 0 {
		batchSize = 100000
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := conn.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	r := &ClickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*chTable),
	}

	atexit.Register(func() {
		r.Flush()
	})

	r.run = newRunRecorder(r)
	r.run.Start()

	return r
}

// CreateTable creates a table with a ClickHouse-optimized schema.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var createSQL string
	var tType tableType

	switch sampleEntry.(type) {
	case runInfo:
		tType = tableTypeRunInfo
		createSQL = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				Property String,
				Value String
			) ENGINE = MergeTree()
			ORDER BY Property
		`, tableName)

	case spanRowDB:
		tType = tableTypeSpan
		createSQL = spanTableSQL(tableName)

	case sessionRowDB:
		tType = tableTypeSession
		createSQL = sessionTableSQL(tableName)

	default:
		createSQL, tType = r.detectTableTypeAndCreateSQL(tableName, sampleEntry)
	}

	err := r.conn.Exec(context.Background(), createSQL)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &chTable{tableType: tType}
}

func (r *ClickHouseRecorder) detectTableTypeAndCreateSQL(
	tableName string,
	sample any,
) (string, tableType) {
	sampleStr := fmt.Sprintf("%T", sample)

	if strings.Contains(sampleStr, "spanTableEntry") {
		return spanTableSQL(tableName), tableTypeSpan
	}

	if strings.Contains(sampleStr, "sessionIndexEntry") {
		return sessionTableSQL(tableName), tableTypeSession
	}

	panic(fmt.Sprintf("unknown table type: %T", sample))
}

func spanTableSQL(tableName string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ID Int64,
			Kind String,
			Subsystem String,
			ParentID Int64,
			CreatedAt Float64,
			DestroyedAt Float64,
			Fires Int64,
			Failures Int64
		) ENGINE = MergeTree()
		ORDER BY (ID, CreatedAt)
	`, tableName)
}

func sessionTableSQL(tableName string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			TableName String,
			SessionStart Float64,
			SessionEnd Float64
		) ENGINE = MergeTree()
		ORDER BY TableName
	`, tableName)
}

// InsertData buffers one entry using type-specific fast paths.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	table, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	switch table.tableType {
	case tableTypeSpan:
		table.spanRows = append(table.spanRows, convertToSpanRow(entry))

	case tableTypeSession:
		table.sessionRows = append(table.sessionRows,
			convertToSessionRow(entry))

	case tableTypeRunInfo:
		e, ok := entry.(runInfo)
		if !ok {
			r.mu.Unlock()
			panic(fmt.Sprintf("invalid entry type for run info: %T", entry))
		}

		table.runRows = append(table.runRows, e)

	default:
		r.mu.Unlock()
		panic(fmt.Sprintf("unknown table type: %d", table.tableType))
	}

	r.entryCount++

	if r.entryCount >= r.batchSize {
		r.mu.Unlock()
		r.Flush()
		return
	}

	r.mu.Unlock()
}

// ListTables returns all table names.
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	return tables
}

// Flush writes all buffered rows to ClickHouse using bulk inserts.
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, table := range r.tables {
		switch table.tableType {
		case tableTypeSpan:
			if len(table.spanRows) > 0 {
				r.flushSpanTable(ctx, tableName, table)
			}
		case tableTypeSession:
			if len(table.sessionRows) > 0 {
				r.flushSessionTable(ctx, tableName, table)
			}
		case tableTypeRunInfo:
			if len(table.runRows) > 0 {
				r.flushRunInfoTable(ctx, tableName, table)
			}
		}
	}

	r.entryCount = 0
}

func (r *ClickHouseRecorder) flushSpanTable(
	ctx context.Context,
	tableName string,
	table *chTable,
) {
	batch, err := r.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s", tableName))
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, row := range table.spanRows {
		err = batch.Append(
			row.ID,
			row.Kind,
			row.Subsystem,
			row.ParentID,
			row.CreatedAt,
			row.DestroyedAt,
			row.Fires,
			row.Failures,
		)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	err = batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.spanRows = table.spanRows[:0]
}

func (r *ClickHouseRecorder) flushSessionTable(
	ctx context.Context,
	tableName string,
	table *chTable,
) {
	batch, err := r.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s", tableName))
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, row := range table.sessionRows {
		err = batch.Append(row.TableName, row.SessionStart, row.SessionEnd)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	err = batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.sessionRows = table.sessionRows[:0]
}

func (r *ClickHouseRecorder) flushRunInfoTable(
	ctx context.Context,
	tableName string,
	table *chTable,
) {
	batch, err := r.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s", tableName))
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, row := range table.runRows {
		err = batch.Append(row.Property, row.Value)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	err = batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.runRows = table.runRows[:0]
}

// Close ends the run log, flushes remaining data, and closes the
// connection.
func (r *ClickHouseRecorder) Close() error {
	if r.run != nil {
		run := r.run
		r.run = nil
		run.End()
	}

	r.Flush()

	err := r.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
