package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sqlitely-dev/core/grammar"
)

// RecoverData rebuilds a fresh database at newPath from whatever of the
// current schema still parses, then streams each table's rows across in
// SeekLength-sized pages. A row that fails to scan or insert is skipped
// without a diagnostic. A page that fails to read (a corrupt page,
// typically) ends that table's copy: the rows already copied stay, later
// pages of that table are not attempted, and the other tables are still
// copied. It returns one diagnostic string per skipped or failed schema
// item and one per table whose copy ended on a failed read. owner, if given, is
// the caller's consumer token: since recovery reads every table, it is
// refused with a LockConflict if any other owner holds any lock at all,
// the same whole-database conflict scope vacuum uses.
func (d *Database) RecoverData(ctx context.Context, newPath string, owner ...uuid.UUID) ([]string, error) {
	if label, conflict := d.locks.GetLock(nil, "", firstOwner(owner)); conflict {
		return nil, &LockConflict{Label: label}
	}
	if err := d.EnsureFreshSchema(ctx); err != nil {
		return nil, err
	}

	target, err := Open(ctx, newPath, d.cfg)
	if err != nil {
		return nil, err
	}
	defer target.Close()

	var diagnostics []string
	cache := d.GetCache()
	for _, it := range fullSchemaOrder(cache) {
		if it.Meta == nil {
			diagnostics = append(diagnostics, fmt.Sprintf("%s %s: skipped, did not parse", it.Category, it.Name))
			continue
		}
		createSQL := grammar.Generate(it.Meta, "")
		if _, err := target.db.ExecContext(ctx, createSQL); err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("%s %s: %v", it.Category, it.Name, err))
		}
	}

	for _, it := range cache.Category(grammar.CategoryTable) {
		if err := d.copyTableRows(ctx, target, it.Name); err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("table %s: %v", it.Name, err))
		}
	}
	return diagnostics, nil
}

func (d *Database) copyTableRows(ctx context.Context, target *Database, table string) error {
	limit := d.cfg.SeekLength
	if limit <= 0 {
		limit = 100
	}
	offset := 0
	for {
		q := fmt.Sprintf("SELECT * FROM %s LIMIT ? OFFSET ?", quoted(table))
		rows, err := d.Execute(ctx, q, limit, offset)
		if err != nil {
			return err
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return err
		}
		ins := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoted(table), strings.TrimSuffix(strings.Repeat("?,", len(cols)), ","))

		n := 0
		for rows.Next() {
			n++
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				continue
			}
			if _, err := target.db.ExecContext(ctx, ins, vals...); err != nil {
				continue
			}
		}
		readErr := rows.Err()
		rows.Close()
		if readErr != nil {
			return readErr
		}
		if n < limit {
			break
		}
		offset += limit
	}
	return nil
}
