package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/sqlitely-dev/core/config"
	"github.com/sqlitely-dev/core/grammar"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func runScript(t *testing.T, d *Database, script string) {
	t.Helper()
	_, err := d.ExecuteScript(context.Background(), script, "seed")
	require.NoError(t, err)
}

func openMemory(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()
	d, err := Open(ctx, ":memory:", config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestExecuteActionMarksSchemaStaleOnDDL(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)

	_, err := d.ExecuteAction(ctx, `CREATE TABLE customer (id INTEGER PRIMARY KEY, name TEXT)`, "create table")
	require.NoError(t, err)
	assert.True(t, d.GetCache().Stale())

	require.NoError(t, d.PopulateSchema(ctx))
	_, ok := d.GetItem(grammar.CategoryTable, "customer")
	assert.True(t, ok)
}

func TestExecuteActionLogsAndCapsHistory(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	d.actionLog = NewActionLog(2)

	_, err := d.ExecuteAction(ctx, `CREATE TABLE t (a INTEGER)`, "one")
	require.NoError(t, err)
	_, err = d.ExecuteAction(ctx, `INSERT INTO t (a) VALUES (1)`, "two")
	require.NoError(t, err)
	_, err = d.ExecuteAction(ctx, `INSERT INTO t (a) VALUES (2)`, "three")
	require.NoError(t, err)

	hist := d.ActionHistory()
	require.Len(t, hist, 2)
	assert.Equal(t, "two", hist[0].Name)
	assert.Equal(t, "three", hist[1].Name)
}

func TestExecuteScriptRunsStatementsInOrder(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)

	script := `
		CREATE TABLE t (a INTEGER);
		INSERT INTO t (a) VALUES (1);
		INSERT INTO t (a) VALUES (2);
	`
	results, err := d.ExecuteScript(ctx, script, "seed")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.EqualValues(t, 1, results[1].RowsAffected)
}

func TestGetSQLOrdersDependentsAfterTables(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `
		CREATE TABLE customer (id INTEGER PRIMARY KEY, name TEXT);
		CREATE VIEW customer_names AS SELECT name FROM customer;
		CREATE INDEX idx_customer_name ON customer (name);
	`)
	require.NoError(t, d.PopulateSchema(ctx))

	full, err := d.GetSQL("", "")
	require.NoError(t, err)
	tableIdx := indexOf(full, "CREATE TABLE")
	viewIdx := indexOf(full, "CREATE VIEW")
	require.GreaterOrEqual(t, tableIdx, 0)
	require.GreaterOrEqual(t, viewIdx, 0)
	assert.Less(t, tableIdx, viewIdx)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestRenameItemRenamesTableAndDependentIndex(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `
		CREATE TABLE customer (id INTEGER PRIMARY KEY, name TEXT);
		CREATE INDEX idx_customer_name ON customer (name);
	`)
	require.NoError(t, d.PopulateSchema(ctx))

	require.NoError(t, d.RenameItem(ctx, grammar.CategoryTable, "customer", "client"))
	require.NoError(t, d.PopulateSchema(ctx))

	_, ok := d.GetItem(grammar.CategoryTable, "customer")
	assert.False(t, ok)
	item, ok := d.GetItem(grammar.CategoryTable, "client")
	assert.True(t, ok)
	assert.Equal(t, "client", item.Name)

	idx, ok := d.GetItem(grammar.CategoryIndex, "idx_customer_name")
	require.True(t, ok)
	require.NotNil(t, idx.Meta)
	assert.Equal(t, "client", idx.Meta.Index.Table)
}

func TestRenameItemRejectsNameCollision(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `
		CREATE TABLE a (id INTEGER);
		CREATE TABLE b (id INTEGER);
	`)
	require.NoError(t, d.PopulateSchema(ctx))

	err := d.RenameItem(ctx, grammar.CategoryTable, "a", "b")
	require.Error(t, err)
	var conflict *SchemaConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestDropColumnRemovesColumnAndKeepsData(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `
		CREATE TABLE t (a INTEGER, b TEXT);
		INSERT INTO t (a, b) VALUES (1, 'x');
	`)
	require.NoError(t, d.PopulateSchema(ctx))

	dropped, err := d.DropColumn(ctx, "t", "b")
	require.NoError(t, err)
	assert.Empty(t, dropped)

	rows, err := d.Execute(ctx, `SELECT a FROM t`)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var a int
	require.NoError(t, rows.Scan(&a))
	assert.Equal(t, 1, a)
}

func TestGetRowIDReportsNullForWithoutRowID(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	_, err := d.ExecuteAction(ctx, `CREATE TABLE t (a TEXT PRIMARY KEY) WITHOUT ROWID`, "seed")
	require.NoError(t, err)
	require.NoError(t, d.PopulateSchema(ctx))
	assert.Equal(t, "NULL", d.GetRowID("t"))
}

func TestCheckIntegrityReportsOK(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	msgs, err := d.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLockRegistryConflictsOnSameItem(t *testing.T) {
	r := NewLockRegistry()
	owner := mustUUID(t)
	r.Lock(grammar.CategoryTable, "customer", owner, "analyzing")

	cat := grammar.CategoryTable
	label, conflict := r.GetLock(&cat, "customer")
	assert.True(t, conflict)
	assert.Equal(t, "analyzing", label)

	_, noConflict := r.GetLock(&cat, "customer", owner)
	assert.False(t, noConflict)

	other := grammar.CategoryView
	_, unrelated := r.GetLock(&other, "customer")
	assert.False(t, unrelated)
}

func TestLockRegistryGlobalRequestConflictsWithAnyLock(t *testing.T) {
	r := NewLockRegistry()
	owner := mustUUID(t)
	r.Lock(grammar.CategoryTable, "customer", owner, "vacuuming")

	_, conflict := r.GetLock(nil, "")
	assert.True(t, conflict)
}

func TestLockRegistryWholeDatabaseLockConflictsWithEveryRequest(t *testing.T) {
	r := NewLockRegistry()
	owner := mustUUID(t)
	r.LockDatabase(owner, "analyzing")

	_, globalConflict := r.GetLock(nil, "")
	assert.True(t, globalConflict)

	cat := grammar.CategoryTable
	label, scopedConflict := r.GetLock(&cat, "customer")
	assert.True(t, scopedConflict)
	assert.Equal(t, "analyzing", label)

	_, skipped := r.GetLock(&cat, "customer", owner)
	assert.False(t, skipped)

	r.UnlockDatabase(owner)
	_, afterUnlock := r.GetLock(&cat, "customer")
	assert.False(t, afterUnlock)
}

func TestExecuteActionRefusesDDLUnderConflictingLock(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	other := mustUUID(t)
	d.Locks().LockDatabase(other, "vacuuming")

	_, err := d.ExecuteAction(ctx, `CREATE TABLE t (a INTEGER)`, "create table")
	var conflict *LockConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "vacuuming", conflict.Label)

	d.Locks().UnlockDatabase(other)
	_, err = d.ExecuteAction(ctx, `CREATE TABLE t (a INTEGER)`, "create table")
	require.NoError(t, err)
}

func TestRenameItemRefusesUnderConflictingLock(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `CREATE TABLE customer (id INTEGER PRIMARY KEY)`)
	require.NoError(t, d.PopulateSchema(ctx))

	other := mustUUID(t)
	d.Locks().Lock(grammar.CategoryTable, "customer", other, "exporting")

	err := d.RenameItem(ctx, grammar.CategoryTable, "customer", "client")
	var conflict *LockConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "exporting", conflict.Label)

	d.Locks().Unlock(grammar.CategoryTable, "customer", other)
	require.NoError(t, d.RenameItem(ctx, grammar.CategoryTable, "customer", "client"))
}

func TestRenameItemSkipsCallersOwnLock(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `CREATE TABLE customer (id INTEGER PRIMARY KEY)`)
	require.NoError(t, d.PopulateSchema(ctx))

	owner := mustUUID(t)
	d.Locks().Lock(grammar.CategoryTable, "customer", owner, "my own rename")
	require.NoError(t, d.RenameItem(ctx, grammar.CategoryTable, "customer", "client", owner))
}

func TestDropColumnRefusesUnderConflictingLock(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `CREATE TABLE t (a INTEGER, b TEXT)`)
	require.NoError(t, d.PopulateSchema(ctx))

	other := mustUUID(t)
	d.Locks().Lock(grammar.CategoryTable, "t", other, "analyzing")

	_, err := d.DropColumn(ctx, "t", "b")
	var conflict *LockConflict
	require.ErrorAs(t, err, &conflict)
}

func TestRecoverDataRefusesUnderAnyConflictingLock(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `CREATE TABLE t (a INTEGER)`)
	require.NoError(t, d.PopulateSchema(ctx))

	other := mustUUID(t)
	d.Locks().Lock(grammar.CategoryView, "unrelated_view", other, "searching")

	_, err := d.RecoverData(ctx, filepath.Join(t.TempDir(), "recovered.sqlite"))
	var conflict *LockConflict
	require.ErrorAs(t, err, &conflict)
}

func TestGetRowCountCachesResultOntoItem(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `
		CREATE TABLE t (a INTEGER);
		INSERT INTO t (a) VALUES (1), (2);
	`)
	require.NoError(t, d.PopulateSchema(ctx))

	item, ok := d.GetItem(grammar.CategoryTable, "t")
	require.True(t, ok)
	assert.Nil(t, item.RowCount)

	count, estimated, err := d.GetRowCount(ctx, "t")
	require.NoError(t, err)
	assert.False(t, estimated)
	assert.EqualValues(t, 2, count)

	require.NotNil(t, item.RowCount)
	assert.EqualValues(t, 2, *item.RowCount)
}

func TestPopulateSchemaWithOptionsScopedRefreshAndCount(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `
		CREATE TABLE a (id INTEGER);
		CREATE TABLE b (id INTEGER);
		INSERT INTO b (id) VALUES (1), (2), (3);
	`)
	require.NoError(t, d.PopulateSchema(ctx))
	before, _ := d.GetItem(grammar.CategoryTable, "a")

	cat := grammar.CategoryTable
	require.NoError(t, d.PopulateSchemaWithOptions(ctx, PopulateSchemaOptions{
		Category: &cat,
		Name:     "b",
		Parse:    true,
		Count:    true,
	}))

	after, ok := d.GetItem(grammar.CategoryTable, "a")
	require.True(t, ok)
	assert.Same(t, before, after, "item outside the scoped refresh should be untouched")

	b, ok := d.GetItem(grammar.CategoryTable, "b")
	require.True(t, ok)
	require.NotNil(t, b.RowCount)
	assert.EqualValues(t, 3, *b.RowCount)
}

func TestPopulateSchemaWithOptionsProgressCanAbort(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	runScript(t, d, `
		CREATE TABLE a (id INTEGER);
		CREATE TABLE b (id INTEGER);
	`)

	seen := 0
	require.NoError(t, d.PopulateSchemaWithOptions(ctx, PopulateSchemaOptions{
		Parse: true,
		Progress: func(done, total int) bool {
			seen++
			return false
		},
	}))
	assert.Equal(t, 1, seen)
	assert.Len(t, d.GetCache().All(), 1)
}

func TestEnsureFreshSchemaRescansOnlyWhenStale(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)

	require.NoError(t, d.EnsureFreshSchema(ctx))
	_, ok := d.GetItem(grammar.CategoryTable, "t")
	assert.False(t, ok)

	_, err := d.ExecuteAction(ctx, `CREATE TABLE t (a INTEGER)`, "create table")
	require.NoError(t, err)
	require.True(t, d.GetCache().Stale())

	require.NoError(t, d.EnsureFreshSchema(ctx))
	assert.False(t, d.GetCache().Stale())
	_, ok = d.GetItem(grammar.CategoryTable, "t")
	assert.True(t, ok)
}

func TestActionLogBounded(t *testing.T) {
	l := NewActionLog(1)
	l.Append(ActionLogEntry{Name: "a"})
	l.Append(ActionLogEntry{Name: "b"})
	all := l.All()
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].Name)
}
