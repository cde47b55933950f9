package worker

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sqlitely-dev/core/database"
)

// TableStats is the per-table statistics block sqlite3_analyzer reports.
type TableStats struct {
	Name          string
	PayloadBytes  int64
	UnusedBytes   int64
	FragmentedPct float64
	FillFactorPct float64
}

// AnalyzerResult is the Analyzer worker's terminal payload: per-table
// statistics plus database-level totals.
type AnalyzerResult struct {
	Tables         []TableStats
	TotalPages     int64
	TotalBytes     int64
	FreePages      int64
	RawOutput      string
}

// Analyzer returns a Task that runs the external sqlite3_analyzer binary
// (binPath, e.g. Config.AnalyzerPath) against dbPath and parses its
// line-oriented output into structured statistics. The external process
// is a collaborator, not a library: cancellation kills the child process.
//
// d and owner (a database.Database.RegisterConsumer token) let the task
// hold the whole-database "long read" lock spec.md §4.5 describes for its
// duration, refusing to start if another owner already holds a
// conflicting lock.
func Analyzer(d *database.Database, owner uuid.UUID, binPath, dbPath string) Task {
	return func(ctx context.Context, emit ResultFunc) {
		if label, conflict := d.Locks().GetLock(nil, "", owner); conflict {
			emit(Result{Kind: "analyzer", Done: true, Err: &database.LockConflict{Label: label}})
			return
		}
		d.Locks().LockDatabase(owner, "analyzing")
		defer d.Locks().UnlockDatabase(owner)

		cmd := exec.CommandContext(ctx, binPath, dbPath)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				emit(Result{Kind: "analyzer", Done: true, Cancelled: true})
				return
			}
			emit(Result{Kind: "analyzer", Done: true, Err: err})
			return
		}

		result := parseAnalyzerOutput(out.String())
		emit(Result{Kind: "analyzer", Done: true, Payload: result})
	}
}

// parseAnalyzerOutput normalizes sqlite3_analyzer's "Page size in bytes",
// "Number of pages", and per-table "*** Table NAME ***" sections into an
// AnalyzerResult. The tool's own text format is not machine-stable across
// versions, so this reads the subset of labeled fields it has
// historically emitted and ignores everything else.
func parseAnalyzerOutput(raw string) AnalyzerResult {
	result := AnalyzerResult{RawOutput: raw}
	scanner := bufio.NewScanner(strings.NewReader(raw))

	var pageSize int64
	var current *TableStats
	flush := func() {
		if current != nil {
			result.Tables = append(result.Tables, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "*** Table ") || strings.HasPrefix(line, "*** Index "):
			flush()
			name := strings.TrimPrefix(line, "*** Table ")
			name = strings.TrimPrefix(name, "*** Index ")
			name = strings.TrimSuffix(strings.TrimSpace(name), "***")
			name = strings.TrimSpace(name)
			current = &TableStats{Name: name}
		case strings.HasPrefix(line, "Page size in bytes"):
			pageSize = parseTrailingInt(line)
		case strings.HasPrefix(line, "Number of pages:") || strings.HasPrefix(line, "Number of pages."):
			result.TotalPages = parseTrailingInt(line)
		case strings.HasPrefix(line, "Number of freelist pages"):
			result.FreePages = parseTrailingInt(line)
		case current == nil:
			// stray field line outside any table/index section; ignore.
		case strings.HasPrefix(line, "Payload:"):
			setIntField(&current.PayloadBytes, line)
		case strings.HasPrefix(line, "Unused bytes on pages:"):
			setIntField(&current.UnusedBytes, afterColon(line))
		case strings.HasPrefix(line, "Fragmentation:"):
			current.FragmentedPct = parsePercent(line)
		case strings.HasPrefix(line, "Fill factor:") || strings.HasPrefix(line, "Average fillfactor:"):
			current.FillFactorPct = parsePercent(line)
		}
	}
	flush()
	result.TotalBytes = pageSize * result.TotalPages
	return result
}

func afterColon(line string) string {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return line
	}
	return line[idx+1:]
}

func setIntField(field *int64, line string) {
	*field = parseTrailingInt(line)
}

func parseTrailingInt(line string) int64 {
	fields := strings.Fields(line)
	for i := len(fields) - 1; i >= 0; i-- {
		if n, err := strconv.ParseInt(strings.TrimRight(fields[i], "%"), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func parsePercent(line string) float64 {
	fields := strings.Fields(line)
	for _, f := range fields {
		trimmed := strings.TrimRight(f, "%")
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return v
		}
	}
	return 0
}
