package schema

import "github.com/sqlitely-dev/core/grammar"

// Item is one schema entity tracked in the cache: a table, view, index or
// trigger. Dependencies/Dependents are lower-cased names so lookups stay
// case-insensitive while Name preserves the declared case.
type Item struct {
	Category grammar.Category
	Name     string
	SQL      string
	Meta     *grammar.Meta // nil if the SQL failed to parse
	ParseErr error

	// RowCount and CountEstimated are populated when a PopulateSchema call
	// requests counting (database.PopulateSchemaOptions.Count) or when
	// database.GetRowCount counts the table; otherwise RowCount stays nil. Per-table byte/page statistics are not tracked
	// here — they require the external sqlite3_analyzer process and are
	// surfaced instead through worker.AnalyzerResult.
	RowCount       *int64
	CountEstimated bool

	// Dependencies holds the lower-cased names of items this one
	// references (copied from Meta.Tables at build time).
	Dependencies map[string]struct{}
	// Dependents holds the lower-cased names of items that reference
	// this one; computed once after a full scan.
	Dependents map[string]struct{}

	// Columns is populated from PRAGMA table_info for tables and views and
	// holds PRAGMA's values only; the parsed meta's column definitions are
	// not merged in.
	Columns []ColumnInfo
}

// ColumnInfo is one row of PRAGMA table_info output; DeclaredType is the
// type string PRAGMA reports.
type ColumnInfo struct {
	Position     int
	Name         string
	DeclaredType string
	NotNull      bool
	DefaultValue *string
	PrimaryKey   int // 0 if not part of the primary key, else its 1-based position
}

func newItem(category grammar.Category, name, sqlText string, meta *grammar.Meta, parseErr error) *Item {
	it := &Item{
		Category:     category,
		Name:         name,
		SQL:          sqlText,
		Meta:         meta,
		ParseErr:     parseErr,
		Dependencies: map[string]struct{}{},
		Dependents:   map[string]struct{}{},
	}
	if meta != nil {
		for _, t := range meta.Tables {
			it.Dependencies[t] = struct{}{}
		}
	}
	return it
}
