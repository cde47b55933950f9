package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sqlitely-dev/core/grammar"
	"github.com/sqlitely-dev/core/schema"
)

func quoted(name string) string { return grammar.Quote(name, grammar.QuoteOptions{}) }

// RenameItem renames a table, view, index or trigger and re-creates every
// dependent index/trigger/view (as reported by schema.GetRelated with
// clone=true) with its own SQL rewritten to match. Tables are renamed in
// place with ALTER TABLE ... RENAME TO, which SQLite handles without
// touching the data; other categories have no ALTER-rename form in SQLite
// and are dropped and recreated, which is safe since an index/trigger/view
// holds no data of its own. owner, if given, is the caller's consumer
// token: the rename is refused with a LockConflict if any other owner
// holds a lock on (category, oldName), per spec.md §4.5.
func (d *Database) RenameItem(ctx context.Context, category grammar.Category, oldName, newName string, owner ...uuid.UUID) error {
	if err := d.EnsureFreshSchema(ctx); err != nil {
		return err
	}
	ownerID := firstOwner(owner)
	if label, conflict := d.locks.GetLock(&category, oldName, ownerID); conflict {
		return &LockConflict{Label: label}
	}
	cache := d.GetCache()
	if !strings.EqualFold(oldName, newName) && cache.NameExists(newName) {
		return &SchemaConflict{Category: string(category), Name: newName}
	}
	item, ok := cache.Get(category, oldName)
	if !ok || item.Meta == nil {
		return fmt.Errorf("%s %q not found or unparseable", category, oldName)
	}

	renames := &grammar.Renames{}
	switch category {
	case grammar.CategoryTable:
		renames.Tables = map[string]string{oldName: newName}
	case grammar.CategoryView:
		renames.Views = map[string]string{oldName: newName}
	case grammar.CategoryIndex:
		renames.Indexes = map[string]string{oldName: newName}
	case grammar.CategoryTrigger:
		renames.Triggers = map[string]string{oldName: newName}
	}

	related := schema.GetRelated(cache, category, oldName, false, false, true)

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if category == grammar.CategoryTable {
			stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoted(oldName), quoted(newName))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		} else {
			newSQL, err := grammar.Transform(item.SQL, grammar.TransformOptions{Renames: renames})
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, dropStatement(category, oldName)); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, newSQL); err != nil {
				return err
			}
		}
		for cat, items := range related {
			for _, it := range items {
				if it.Meta == nil {
					continue
				}
				rewritten, err := grammar.Transform(it.SQL, grammar.TransformOptions{Renames: renames})
				if err != nil {
					continue
				}
				if _, err := tx.ExecContext(ctx, dropStatement(cat, it.Name)); err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, rewritten); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.cache.MarkStale()
	d.notifySchemaInvalidated(string(category), newName)
	return nil
}

// RenameColumn renames a table column via ALTER TABLE ... RENAME COLUMN,
// then re-creates dependent indexes/triggers/views whose SQL references
// the old column name. owner, if given, is the caller's consumer token:
// the rename is refused with a LockConflict if any other owner holds a
// lock on the table.
func (d *Database) RenameColumn(ctx context.Context, table, oldCol, newCol string, owner ...uuid.UUID) error {
	if err := d.EnsureFreshSchema(ctx); err != nil {
		return err
	}
	tableCat := grammar.CategoryTable
	ownerID := firstOwner(owner)
	if label, conflict := d.locks.GetLock(&tableCat, table, ownerID); conflict {
		return &LockConflict{Label: label}
	}
	cache := d.GetCache()
	item, ok := cache.Get(grammar.CategoryTable, table)
	if !ok || item.Meta == nil {
		return fmt.Errorf("table %q not found or unparseable", table)
	}

	renames := &grammar.Renames{Columns: map[string]map[string]string{table: {oldCol: newCol}}}
	related := schema.GetRelated(cache, grammar.CategoryTable, table, false, false, true)

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		stmt := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", quoted(table), quoted(oldCol), quoted(newCol))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		for cat, items := range related {
			for _, it := range items {
				if it.Meta == nil {
					continue
				}
				rewritten, err := grammar.Transform(it.SQL, grammar.TransformOptions{Renames: renames})
				if err != nil {
					continue
				}
				if _, err := tx.ExecContext(ctx, dropStatement(cat, it.Name)); err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, rewritten); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.cache.MarkStale()
	d.notifySchemaInvalidated(string(grammar.CategoryTable), table)
	return nil
}

// DropColumn removes a column from table by the recreate-and-copy dance
// SQLite's own ALTER TABLE DROP COLUMN avoids only for the simplest cases:
// create a shadow table without the column, copy the surviving columns'
// data across, drop the original, rename the shadow into place, then
// recreate the table's indexes and triggers from their unchanged SQL. A
// dependent whose parsed SQL mentions the dropped column is skipped instead
// of recreated, and its name is returned to the caller so it can surface
// that loss to the user.
// owner, if given, is the caller's consumer token: the drop is refused
// with a LockConflict if any other owner holds a lock on the table.
func (d *Database) DropColumn(ctx context.Context, table, column string, owner ...uuid.UUID) ([]string, error) {
	if err := d.EnsureFreshSchema(ctx); err != nil {
		return nil, err
	}
	tableCat := grammar.CategoryTable
	ownerID := firstOwner(owner)
	if label, conflict := d.locks.GetLock(&tableCat, table, ownerID); conflict {
		return nil, &LockConflict{Label: label}
	}
	cache := d.GetCache()
	item, ok := cache.Get(grammar.CategoryTable, table)
	if !ok || item.Meta == nil {
		return nil, fmt.Errorf("table %q not found or unparseable", table)
	}

	newMeta := item.Meta.Clone()
	kept := newMeta.Table.Columns[:0]
	for _, col := range newMeta.Table.Columns {
		if !strings.EqualFold(col.Name, column) {
			kept = append(kept, col)
		}
	}
	if len(kept) == len(newMeta.Table.Columns) {
		return nil, fmt.Errorf("table %q has no column %q", table, column)
	}
	newMeta.Table.Columns = kept

	var keptConstraints []*grammar.TableConstraint
	for _, tc := range newMeta.Table.Constraints {
		refs := false
		for _, c := range tc.Columns {
			if strings.EqualFold(c, column) {
				refs = true
			}
		}
		if !refs {
			keptConstraints = append(keptConstraints, tc)
		}
	}
	newMeta.Table.Constraints = keptConstraints

	tmpName := table + "__sqlitely_shadow"
	newMeta.Name = tmpName
	createTmp := grammar.Generate(newMeta, "")

	colNames := make([]string, 0, len(kept))
	for _, c := range kept {
		colNames = append(colNames, quoted(c.Name))
	}
	colList := strings.Join(colNames, ", ")
	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", quoted(tmpName), colList, colList, quoted(table))

	related := schema.GetRelated(cache, grammar.CategoryTable, table, false, false, true)

	var dropped []string
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createTmp); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, copySQL); err != nil {
			return err
		}
		for cat, items := range related {
			if cat != grammar.CategoryIndex && cat != grammar.CategoryTrigger {
				continue
			}
			for _, it := range items {
				if _, err := tx.ExecContext(ctx, dropStatement(cat, it.Name)); err != nil {
					return err
				}
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", quoted(table))); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoted(tmpName), quoted(table))); err != nil {
			return err
		}
		for cat, items := range related {
			if cat != grammar.CategoryIndex && cat != grammar.CategoryTrigger {
				continue
			}
			for _, it := range items {
				if it.Meta == nil {
					dropped = append(dropped, it.Name)
					continue
				}
				if dependsOnColumn(it.Meta, column) {
					dropped = append(dropped, it.Name)
					continue
				}
				if _, err := tx.ExecContext(ctx, grammar.Generate(it.Meta, "")); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.cache.MarkStale()
	d.notifySchemaInvalidated(string(grammar.CategoryTable), table)
	return dropped, nil
}

func dependsOnColumn(m *grammar.Meta, column string) bool {
	col := strings.ToLower(column)
	switch m.Type.Category() {
	case grammar.CategoryIndex:
		if m.Index == nil {
			return false
		}
		for _, ic := range m.Index.Columns {
			if strings.EqualFold(ic.Name, column) {
				return true
			}
		}
		return strings.Contains(strings.ToLower(m.Index.Where), col)
	case grammar.CategoryTrigger:
		if m.Trigger == nil {
			return false
		}
		return strings.Contains(strings.ToLower(m.Trigger.Body), col) || strings.Contains(strings.ToLower(m.Trigger.When), col)
	}
	return false
}

func dropStatement(category grammar.Category, name string) string {
	return fmt.Sprintf("DROP %s %s", strings.ToUpper(string(category)), quoted(name))
}
