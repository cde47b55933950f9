// Package config holds the host-provided configuration inputs the core
// requires: row-count thresholds, streaming chunk sizes, feature toggles,
// and cache bounds. It is a plain struct, not a file-format loader — the
// host owns parsing whatever config format it uses and fills this in.
package config

import "time"

// Config bundles the tunables spec.md §6 lists as host-provided.
type Config struct {
	// MaxDBSizeForFullCount is the file-size ceiling (bytes) under which
	// row counts are computed exactly via COUNT(*).
	MaxDBSizeForFullCount int64
	// MaxTableRowIDForFullCount is the MAX(ROWID) ceiling under which row
	// counts are computed exactly even for larger databases.
	MaxTableRowIDForFullCount int64

	// SeekLength is the page size used by streaming cursors (export,
	// recover_data, search).
	SeekLength int
	// SeekLeapLength is the larger page size used once a cursor has
	// proven it will read many pages (a "leap" past SeekLength).
	SeekLeapLength int
	// SearchResultsChunk is the number of search hits emitted per chunk.
	SearchResultsChunk int

	// MaxSearchResults caps total hits a single search query will emit.
	MaxSearchResults int
	// MaxActionHistory bounds the action-log ring buffer.
	MaxActionHistory int
	// MaxParseCache bounds the LRU of memoized grammar.Parse results.
	MaxParseCache int

	// AnalyzerPath is the path to the sqlite3_analyzer binary.
	AnalyzerPath string

	// RunChecksumAutomatically and RunStatisticsAutomatically are feature
	// toggles for whether opening a database kicks those workers off.
	RunChecksumAutomatically   bool
	RunStatisticsAutomatically bool

	// SingleInstance enables the worker.InstanceListener single-instance
	// IPC handoff.
	SingleInstance bool

	// AllowedExtensions is the set of file extensions (with leading dot,
	// lowercase) DetectDatabase and the "open" dialog treat as candidate
	// SQLite files.
	AllowedExtensions []string

	// YieldBudget bounds how long a worker runs between cooperative yield
	// checks; informational only, no code in this module reads it.
	YieldBudget time.Duration
}

// Default returns the configuration spec.md's defaults describe: generous
// thresholds, modest chunk sizes, the standard SQLite file extensions.
func Default() Config {
	return Config{
		MaxDBSizeForFullCount:     1_000_000,
		MaxTableRowIDForFullCount: 10_000,
		SeekLength:                100,
		SeekLeapLength:            1000,
		SearchResultsChunk:        50,
		MaxSearchResults:          1000,
		MaxActionHistory:          1000,
		MaxParseCache:             200,
		AnalyzerPath:              "sqlite3_analyzer",
		SingleInstance:            false,
		AllowedExtensions: []string{
			".db", ".db3", ".s3db", ".sl3", ".sqlite", ".sqlite3", ".sqlitedb",
		},
		YieldBudget: 100 * time.Millisecond,
	}
}
