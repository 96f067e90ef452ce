package datarecording

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// RecorderConfig selects and configures a recording backend.
type RecorderConfig struct {
	// Type selects the backend, either "sqlite" or "clickhouse". An empty
	// type means sqlite.
	Type string

	// Path is the SQLite file path. An empty path picks a generated name.
	Path string

	// ConnStr is a ClickHouse connection string, e.g.
	// "clickhouse://localhost:9000/mydb?username=default&password=secret".
	// When set, it takes precedence over the individual fields below.
	ConnStr string

	Host     string
	Port     int
	Database string
	Username string
	Password string

	// BatchSize is the number of buffered entries that triggers a flush.
	// Zero picks the backend default.
	BatchSize int
}

// NewDataRecorderWithConfig creates a DataRecorder according to the config.
func NewDataRecorderWithConfig(config RecorderConfig) DataRecorder {
	switch config.Type {
	case "", "sqlite":
		batchSize := config.BatchSize
		if batchSize == 0 {
			batchSize = 100000
		}

		return newSQLiteWriter(config.Path, batchSize)

	case "clickhouse":
		c := config
		if c.ConnStr != "" {
			c = parseClickHouseConnStr(c)
		}

		return NewClickHouseRecorder(
			c.Host, c.Port, c.Database, c.Username, c.Password, c.BatchSize)

	default:
		panic(fmt.Sprintf("unknown recorder type %q", config.Type))
	}
}

func parseClickHouseConnStr(config RecorderConfig) RecorderConfig {
	u, err := url.Parse(config.ConnStr)
	if err != nil {
		panic(fmt.Errorf("invalid ClickHouse connection string: %w", err))
	}

	if u.Scheme != "clickhouse" {
		panic(fmt.Sprintf(
			"unsupported scheme %q in connection string", u.Scheme))
	}

	config.Host = u.Hostname()

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			panic(fmt.Errorf("invalid port in connection string: %w", err))
		}

		config.Port = port
	}

	config.Database = strings.TrimPrefix(u.Path, "/")

	q := u.Query()
	if v := q.Get("username"); v != "" {
		config.Username = v
	}

	if v := q.Get("password"); v != "" {
		config.Password = v
	}

	return config
}
