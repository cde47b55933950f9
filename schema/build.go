package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sqlitely-dev/core/grammar"
)

// ScanOptions narrows and configures a Scan call. The zero value scans
// every item from scratch without parsing it (Parse is false, so Meta,
// ParseErr and dependency edges stay empty) and skips row counting.
type ScanOptions struct {
	// Existing, if set, seeds the returned Cache with every item it holds;
	// items sqlite_master reports matching Category/Name overwrite those
	// entries, everything else carries over untouched. This is what makes a
	// single-category or single-name rescan a partial refresh rather than a
	// full one.
	Existing *Cache

	// Category and Name scope the rescan to one schema item. A nil Category
	// (the zero value) scans every category; an empty Name scans every item
	// within Category.
	Category *grammar.Category
	Name     string

	// Parse controls whether each scanned item's CREATE SQL is run through
	// grammar.Parse. Skipping it is cheaper when a caller only needs
	// PRAGMA-level information (existence, columns) and not the dependency
	// graph or generated SQL.
	Parse bool

	// Count, if true, populates RowCount/CountEstimated on every scanned
	// table via EstimateRowCount, using the thresholds and file size below.
	Count                     bool
	FileSize                  int64
	MaxDBSizeForFullCount     int64
	MaxTableRowIDForFullCount int64

	// Progress, if set, is called after each item is parsed and added to
	// the cache with the running count and the total items this scan will
	// process. Returning false aborts the scan early: ComputeDependents
	// still runs over whatever was added, but the PRAGMA column/row-count
	// passes below are skipped.
	Progress func(done, total int) bool
}

type scannedRow struct {
	category grammar.Category
	name     string
	sqlText  sql.NullString
}

// Scan reads sqlite_master (excluding sqlite_-prefixed internal objects),
// optionally scoped to opts.Category/opts.Name, parses each item's CREATE
// SQL unless opts.Parse is false, and builds a Cache with the dependency
// graph and table/view columns populated. Items whose SQL fails to parse
// are still listed, with ParseErr set and no dependency edges (spec.md
// §4.2, §9 Open Question).
func Scan(ctx context.Context, eq ExecQuerier, opts ScanOptions) (*Cache, error) {
	query := `SELECT type, name, sql FROM sqlite_master WHERE name NOT LIKE 'sqlite\_%' ESCAPE '\'`
	var args []any
	if opts.Category != nil {
		query += ` AND type = ?`
		args = append(args, string(*opts.Category))
	}
	if opts.Name != "" {
		query += ` AND name = ? COLLATE NOCASE`
		args = append(args, opts.Name)
	}
	query += ` ORDER BY type, name`

	rows, err := eq.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var scanned []scannedRow
	for rows.Next() {
		var typ, name string
		var sqlText sql.NullString
		if err := rows.Scan(&typ, &name, &sqlText); err != nil {
			rows.Close()
			return nil, err
		}
		category := grammar.Category(typ)
		switch category {
		case grammar.CategoryTable, grammar.CategoryView, grammar.CategoryIndex, grammar.CategoryTrigger:
		default:
			continue
		}
		scanned = append(scanned, scannedRow{category, name, sqlText})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	cache := NewCache()
	if opts.Existing != nil {
		for _, it := range opts.Existing.All() {
			cache.Put(it)
		}
	}

	total := len(scanned)
	aborted := false
	for i, r := range scanned {
		var meta *grammar.Meta
		var perr error
		if opts.Parse && r.sqlText.Valid && strings.TrimSpace(r.sqlText.String) != "" {
			meta, perr = grammar.Parse(r.sqlText.String, grammar.ParseOptions{})
		}
		cache.Put(newItem(r.category, r.name, r.sqlText.String, meta, perr))

		if opts.Progress != nil && !opts.Progress(i+1, total) {
			aborted = true
			break
		}
	}
	cache.ComputeDependents()
	if aborted || ctx.Err() != nil {
		return cache, ctx.Err()
	}

	for _, r := range scanned {
		it, ok := cache.Get(r.category, r.name)
		if !ok {
			continue
		}
		if r.category == grammar.CategoryTable || r.category == grammar.CategoryView {
			if cols, err := tableInfo(ctx, eq, it.Name); err == nil {
				it.Columns = cols
			}
		}
		if opts.Count && r.category == grammar.CategoryTable {
			withoutRowID := it.Meta != nil && it.Meta.Flags.Has("WITHOUT ROWID")
			n, estimated, err := EstimateRowCount(ctx, eq, it.Name, withoutRowID, opts.FileSize, opts.MaxDBSizeForFullCount, opts.MaxTableRowIDForFullCount)
			if err == nil {
				it.RowCount = &n
				it.CountEstimated = estimated
			}
		}
	}
	return cache, nil
}

func tableInfo(ctx context.Context, eq ExecQuerier, table string) ([]ColumnInfo, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s)", grammar.Quote(table, grammar.QuoteOptions{}))
	rows, err := eq.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ColumnInfo
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		ci := ColumnInfo{Position: cid, Name: name, DeclaredType: ctype, NotNull: notnull != 0, PrimaryKey: pk}
		if dflt.Valid {
			v := dflt.String
			ci.DefaultValue = &v
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}
