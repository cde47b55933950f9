// Package export moves rows between a SQLite source and a sink (a file
// writer in some format, or another SQLite database) through a
// format-agnostic streaming iterator. The core ships the pacing,
// progress, and cancellation machinery plus the DB-to-DB structure+data
// phases; file-format writers (CSV/JSON/SQL/spreadsheet/HTML/PDF) are
// external collaborators implementing Sink.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sqlitely-dev/core/database"
	"github.com/sqlitely-dev/core/grammar"
)

// Sink receives a header once and then every exported row, in order.
// Implementations are format writers (CSV, JSON, SQL, spreadsheet, ...);
// the core ships SQLSink and DatabaseSink.
type Sink interface {
	WriteHeader(columns []string) error
	WriteRow(values []any) error
	Close() error
}

// Job describes one export: the source query to stream, the columns it
// produces, and an estimate of how many rows it will yield (estimated
// rather than exact when the row count itself was estimated).
type Job struct {
	SourceQuery      string
	Args             []any
	Columns          []string
	EstimatedTotal   int64
	IsTotalEstimated bool
	Name             string // a label for progress/SubtaskStatus reporting
}

// SubtaskStatus is the per-subtask outcome a multi-table export reports:
// one Job's source query failing does not abort its siblings.
type SubtaskStatus struct {
	Name    string
	Rows    int64
	Err     error
	Skipped bool
}

// Result is the structured outcome of Run: per-subtask status plus the
// aggregate row count and whether the export was cancelled.
type Result struct {
	Subtasks  []SubtaskStatus
	TotalRows int64
	Cancelled bool
}

// ProgressFunc is called between seek pages with the running totals;
// returning false requests cancellation: Run stops after the page just
// written and reports the job as Skipped.
type ProgressFunc func(done bool, index, count int64) bool

// Pacing bounds how many rows Run fetches per page before yielding and
// reporting progress: SeekLength normally, SeekLeapLength once a cursor
// has proven it will read many pages.
type Pacing struct {
	SeekLength     int
	SeekLeapLength int
}

// Run streams job's rows from d into sink, paging through SourceQuery
// with LIMIT/OFFSET at pacing's page size (switching to SeekLeapLength
// after the first full page), calling progress between pages. A row-level
// error from sink or the driver ends this job and is returned in the
// SubtaskStatus's Err; Run covers one Job, so callers running several jobs
// call Run once per Job and collect each SubtaskStatus — see RunAll for
// that orchestration.
func Run(ctx context.Context, d *database.Database, job Job, sink Sink, pacing Pacing, progress ProgressFunc) SubtaskStatus {
	if err := sink.WriteHeader(job.Columns); err != nil {
		return SubtaskStatus{Name: job.Name, Err: fmt.Errorf("write header: %w", err)}
	}

	pageSize := pacing.SeekLength
	if pageSize <= 0 {
		pageSize = 100
	}
	leapSize := pacing.SeekLeapLength
	if leapSize <= 0 {
		leapSize = pageSize
	}

	var total int64
	offset := 0
	pagesRead := 0
	for {
		if ctx.Err() != nil {
			return SubtaskStatus{Name: job.Name, Rows: total, Skipped: true}
		}
		size := pageSize
		if pagesRead > 0 {
			size = leapSize
		}
		paged := fmt.Sprintf("%s LIMIT %d OFFSET %d", job.SourceQuery, size, offset)
		args := append([]any(nil), job.Args...)
		rows, err := d.Execute(ctx, paged, args...)
		if err != nil {
			return SubtaskStatus{Name: job.Name, Rows: total, Err: err}
		}

		n, rowErr := streamPage(rows, sink, &total)
		if rowErr != nil {
			return SubtaskStatus{Name: job.Name, Rows: total, Err: rowErr}
		}
		pagesRead++
		offset += n

		if progress != nil {
			if !progress(false, total, job.EstimatedTotal) {
				return SubtaskStatus{Name: job.Name, Rows: total, Skipped: true}
			}
		}
		if n < size {
			break
		}
	}

	if progress != nil {
		progress(true, total, job.EstimatedTotal)
	}
	return SubtaskStatus{Name: job.Name, Rows: total}
}

func streamPage(rows *sql.Rows, sink Sink, total *int64) (int, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	n := 0
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return n, err
		}
		if err := sink.WriteRow(raw); err != nil {
			return n, err
		}
		n++
		*total++
	}
	return n, rows.Err()
}

// RunAll runs each job in turn against d, collecting a SubtaskStatus per
// job via newSink (so each job can target its own sink, e.g. one sheet or
// one target table per source table); a job's failure never aborts the
// others. It returns the aggregate Result.
func RunAll(ctx context.Context, d *database.Database, jobs []Job, newSink func(Job) (Sink, error), pacing Pacing, progress func(job Job, done bool, index, count int64) bool) Result {
	var result Result
	for _, job := range jobs {
		sink, err := newSink(job)
		if err != nil {
			result.Subtasks = append(result.Subtasks, SubtaskStatus{Name: job.Name, Err: err})
			continue
		}
		status := Run(ctx, d, job, sink, pacing, func(done bool, index, count int64) bool {
			if progress == nil {
				return true
			}
			return progress(job, done, index, count)
		})
		_ = sink.Close()
		result.Subtasks = append(result.Subtasks, status)
		result.TotalRows += status.Rows
		if status.Skipped && ctx.Err() != nil {
			result.Cancelled = true
		}
	}
	return result
}

// CheckDependencies validates that every item requested for a DB→DB
// export has its dependencies (tables referenced by a view/trigger/index
// being exported) either also present in requested or already present in
// target, per spec.md §4.6's pre-flight check. It returns a
// *database.DependencyMissing for the first violation found, in
// deterministic (sorted) order.
func CheckDependencies(source *database.Database, target *database.Database, requested []ItemRef) error {
	requestedSet := map[string]bool{}
	for _, r := range requested {
		requestedSet[key(r)] = true
	}

	for _, r := range requested {
		item, ok := source.GetItem(r.Category, r.Name)
		if !ok || item.Meta == nil {
			continue
		}
		for _, dep := range item.Meta.Tables {
			if requestedSet[key(ItemRef{Category: grammar.CategoryTable, Name: dep})] {
				continue
			}
			if _, ok := target.GetItem(grammar.CategoryTable, dep); ok {
				continue
			}
			return &database.DependencyMissing{
				Category:   string(grammar.CategoryTable),
				Name:       dep,
				RequiredBy: []string{r.Name},
			}
		}
	}
	return nil
}

// ItemRef names one schema item by category and name.
type ItemRef struct {
	Category grammar.Category
	Name     string
}

func key(r ItemRef) string {
	return string(r.Category) + "\x00" + strings.ToLower(r.Name)
}
