package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sqlitely-dev/core/database"
	"github.com/sqlitely-dev/core/grammar"
)

// SQLSink writes each row as an INSERT statement against table, to w.
// SQL-statement emission belongs to the schema domain, not a format
// library, so the core ships this sink directly rather than leaving it
// to an external collaborator.
type SQLSink struct {
	w         io.Writer
	table     string
	columns   []string
	rowsAsTxn bool
	wroteBOT  bool
}

// NewSQLSink returns a SQLSink writing INSERT statements for table to w.
// When rowsAsTxn is true, the sink wraps all rows in a single transaction
// (BEGIN before the first row, COMMIT on Close).
func NewSQLSink(w io.Writer, table string, rowsAsTxn bool) *SQLSink {
	return &SQLSink{w: w, table: table, rowsAsTxn: rowsAsTxn}
}

func (s *SQLSink) WriteHeader(columns []string) error {
	s.columns = columns
	return nil
}

func (s *SQLSink) WriteRow(values []any) error {
	if s.rowsAsTxn && !s.wroteBOT {
		if _, err := fmt.Fprintln(s.w, "BEGIN TRANSACTION;"); err != nil {
			return err
		}
		s.wroteBOT = true
	}
	cols := make([]string, len(s.columns))
	for i, c := range s.columns {
		cols[i] = grammar.Quote(c, grammar.QuoteOptions{})
	}
	vals := make([]string, len(values))
	for i, v := range values {
		vals[i] = sqlLiteral(v)
	}
	_, err := fmt.Fprintf(s.w, "INSERT INTO %s (%s) VALUES (%s);\n",
		grammar.Quote(s.table, grammar.QuoteOptions{}),
		strings.Join(cols, ", "), strings.Join(vals, ", "))
	return err
}

func (s *SQLSink) Close() error {
	if s.rowsAsTxn && s.wroteBOT {
		_, err := fmt.Fprintln(s.w, "COMMIT;")
		return err
	}
	return nil
}

// sqlLiteral renders v as a SQL literal: NULL, a quoted string (with
// embedded single quotes doubled), or a bare number.
func sqlLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "X'" + fmt.Sprintf("%x", t) + "'"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// DatabaseSink writes rows into a table of a target Database. Each
// WriteRow runs one parameterized INSERT through Database.Execute with the
// row's values bound; rows are not wrapped in a transaction, no statement
// is prepared ahead of time, and the inserts are not recorded in the
// target's action log.
type DatabaseSink struct {
	ctx    context.Context
	target *database.Database
	table  string
	cols   []string
}

// NewDatabaseSink returns a DatabaseSink that inserts rows into table on
// target.
func NewDatabaseSink(ctx context.Context, target *database.Database, table string) *DatabaseSink {
	return &DatabaseSink{ctx: ctx, target: target, table: table}
}

func (s *DatabaseSink) WriteHeader(columns []string) error {
	s.cols = columns
	return nil
}

func (s *DatabaseSink) WriteRow(values []any) error {
	cols := make([]string, len(s.cols))
	placeholders := make([]string, len(s.cols))
	for i, c := range s.cols {
		cols[i] = grammar.Quote(c, grammar.QuoteOptions{})
		placeholders[i] = "?"
	}
	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		grammar.Quote(s.table, grammar.QuoteOptions{}),
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	rows, err := s.target.Execute(s.ctx, sqlText, values...)
	if err != nil {
		return err
	}
	return rows.Close()
}

func (s *DatabaseSink) Close() error { return nil }

// ExportStructure writes CREATE statements for each requested item to
// target in the order items lists them; it does not reorder them by
// dependency. Name collisions with items already present in target are
// resolved via renameMap (old name -> new name), which is applied to the
// SQL of every exported item that parses, so references to a renamed
// table or view inside the other exported items follow the new name.
// Items with no entry keep their source name and are skipped if a
// same-named item already exists in target.
func ExportStructure(ctx context.Context, source, target *database.Database, items []ItemRef, renameMap map[string]string) error {
	renames := &grammar.Renames{Tables: map[string]string{}, Views: map[string]string{}}
	for oldName, newName := range renameMap {
		renames.Tables[strings.ToLower(oldName)] = newName
		renames.Views[strings.ToLower(oldName)] = newName
	}
	for _, ref := range items {
		item, ok := source.GetItem(ref.Category, ref.Name)
		if !ok {
			continue
		}
		targetName := ref.Name
		if renamed, ok := renameMap[ref.Name]; ok {
			targetName = renamed
		}
		if _, exists := target.GetItem(ref.Category, targetName); exists {
			continue
		}
		sqlText, err := source.GetSQL(ref.Category, ref.Name)
		if err != nil {
			return err
		}
		if targetName != ref.Name || (len(renameMap) > 0 && item.Meta != nil) {
			sqlText, err = grammar.Transform(sqlText, grammar.TransformOptions{Renames: renames})
			if err != nil {
				return err
			}
		}
		if _, err := target.ExecuteAction(ctx, sqlText, "export structure: "+targetName); err != nil {
			return err
		}
	}
	return nil
}
