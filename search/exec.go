package search

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/sqlitely-dev/core/database"
	"github.com/sqlitely-dev/core/grammar"
	"github.com/sqlitely-dev/core/schema"
)

// Mode selects which corpus a search runs against.
type Mode string

// Recognized search modes.
const (
	ModeData Mode = "data"
	ModeMeta Mode = "meta"
)

// ChunkSize bounds how many rows accumulate into one ResultsChunk before
// it is handed to the caller.
const ChunkSize = 200

// Hit is one matching row (data mode) or schema item (meta mode).
type Hit struct {
	Category   grammar.Category
	Relation   string
	Columns    []string
	Values     []any
	Highlights [][]Span // per-column highlight spans, aligned with Values
}

// Span is a (start, end) byte offset pair into a stringified cell value.
type Span struct {
	Start int
	End   int
}

// ResultsChunk is one emission of the streaming search: either a batch of
// hits, or the terminal emission (Done true).
type ResultsChunk struct {
	Hits      []Hit
	Done      bool
	Cancelled bool
	Total     int
}

// Run executes query against d's schema, streaming ResultsChunk values to
// emit. caseSensitive selects GLOB over LIKE compilation. It iterates
// relations in stable alphabetical order (tables then views, or the set
// named by table:/view: keywords), honoring ctx cancellation between
// relations and between chunks.
//
// owner, if given, is the caller's consumer token (database.Database.
// RegisterConsumer): Run is refused with a database.LockConflict if
// another owner holds a conflicting lock, and otherwise holds its own
// whole-database "long read" lock (spec.md §4.5) for the run's duration so
// a concurrent structural mutation is refused in turn.
func Run(ctx context.Context, d *database.Database, query *Query, mode Mode, caseSensitive bool, emit func(ResultsChunk) bool, owner ...uuid.UUID) error {
	ownerID := uuid.Nil
	if len(owner) > 0 {
		ownerID = owner[0]
	}
	if label, conflict := d.Locks().GetLock(nil, "", ownerID); conflict {
		return &database.LockConflict{Label: label}
	}
	d.Locks().LockDatabase(ownerID, "searching")
	defer d.Locks().UnlockDatabase(ownerID)

	if err := d.EnsureFreshSchema(ctx); err != nil {
		return err
	}
	cache := d.GetCache()
	filters := CollectFilters(query)

	if mode == ModeMeta {
		return runMeta(ctx, d, cache, query, filters, emit)
	}
	return runData(ctx, d, cache, query, filters, caseSensitive, emit)
}

func runData(ctx context.Context, d *database.Database, cache *schema.Cache, query *Query, filters *Filters, caseSensitive bool, emit func(ResultsChunk) bool) error {
	total := 0
	var pending []Hit

	relations := relationPlan(cache, filters)
	for _, rel := range relations {
		if ctx.Err() != nil {
			emit(ResultsChunk{Done: true, Cancelled: true, Total: total})
			return nil
		}
		item, ok := cache.Get(rel.category, rel.name)
		if !ok || item.Columns == nil {
			continue
		}
		compiled, err := Compile(rel.name, item.Columns, query, caseSensitive)
		if err != nil {
			return err
		}
		args := namedArgs(compiled.Params)
		rows, err := d.Execute(ctx, compiled.SQL, args...)
		if err != nil {
			return fmt.Errorf("search %s: %w", rel.name, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return err
		}

		pattern := wordsAndPhrases(query)
		for rows.Next() {
			if ctx.Err() != nil {
				rows.Close()
				emit(ResultsChunk{Hits: drain(&pending), Done: true, Cancelled: true, Total: total})
				return nil
			}
			values, err := scanRow(rows, len(cols))
			if err != nil {
				rows.Close()
				return err
			}
			total++
			pending = append(pending, Hit{
				Category:   rel.category,
				Relation:   rel.name,
				Columns:    cols,
				Values:     values,
				Highlights: HighlightRow(values, pattern),
			})
			if len(pending) >= ChunkSize {
				if !emit(ResultsChunk{Hits: drain(&pending)}) {
					rows.Close()
					emit(ResultsChunk{Done: true, Cancelled: true, Total: total})
					return nil
				}
			}
		}
		closeErr := rows.Close()
		if closeErr != nil {
			return closeErr
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		emit(ResultsChunk{Hits: drain(&pending)})
	}
	emit(ResultsChunk{Done: true, Total: total})
	return nil
}

// runMeta searches the concatenation of each schema item's name, type,
// and canonical SQL.
func runMeta(ctx context.Context, d *database.Database, cache *schema.Cache, query *Query, filters *Filters, emit func(ResultsChunk) bool) error {
	total := 0
	var pending []Hit
	pattern := wordsAndPhrases(query)

	for _, item := range cache.All() {
		if ctx.Err() != nil {
			emit(ResultsChunk{Hits: drain(&pending), Done: true, Cancelled: true, Total: total})
			return nil
		}
		if item.Category == grammar.CategoryTable && !filters.relationAllowed(false, item.Name) {
			continue
		}
		if item.Category == grammar.CategoryView && !filters.relationAllowed(true, item.Name) {
			continue
		}
		haystack := fmt.Sprintf("%s %s %s", item.Name, item.Category, item.SQL)
		spans := findSpans(haystack, pattern)
		if len(spans) == 0 {
			continue
		}
		total++
		pending = append(pending, Hit{
			Category:   item.Category,
			Relation:   item.Name,
			Columns:    []string{"name", "type", "sql"},
			Values:     []any{item.Name, string(item.Category), item.SQL},
			Highlights: [][]Span{nil, nil, spans},
		})
		if len(pending) >= ChunkSize {
			if !emit(ResultsChunk{Hits: drain(&pending)}) {
				emit(ResultsChunk{Done: true, Cancelled: true, Total: total})
				return nil
			}
		}
	}
	if len(pending) > 0 {
		emit(ResultsChunk{Hits: drain(&pending)})
	}
	emit(ResultsChunk{Done: true, Total: total})
	return nil
}

type relationRef struct {
	category grammar.Category
	name     string
}

// relationPlan orders candidate relations: tables alphabetically, then
// views alphabetically, restricted to whichever set table:/view:
// keywords name.
func relationPlan(cache *schema.Cache, filters *Filters) []relationRef {
	var out []relationRef
	for _, name := range OrderedRelationNames(cache, filters, false) {
		out = append(out, relationRef{category: grammar.CategoryTable, name: name})
	}
	for _, name := range OrderedRelationNames(cache, filters, true) {
		out = append(out, relationRef{category: grammar.CategoryView, name: name})
	}
	return out
}

func namedArgs(params map[string]any) []any {
	args := make([]any, 0, len(params))
	for k, v := range params {
		args = append(args, sql.Named(k, v))
	}
	return args
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	raw := make([]any, n)
	ptrs := make([]any, n)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return raw, nil
}

func drain(pending *[]Hit) []Hit {
	out := *pending
	*pending = nil
	return out
}
