package schema

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/sqlitely-dev/core/grammar"
)

func openScanDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestScanFullBuildsDependencyGraph(t *testing.T) {
	ctx := context.Background()
	db := openScanDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE customer (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE VIEW customer_names AS SELECT name FROM customer`)
	require.NoError(t, err)

	cache, err := Scan(ctx, db, ScanOptions{Parse: true})
	require.NoError(t, err)

	customer, ok := cache.Get(grammar.CategoryTable, "customer")
	require.True(t, ok)
	assert.Contains(t, customer.Dependents, "customer_names")
	assert.Nil(t, customer.RowCount)
}

func TestScanScopedToCategoryAndNamePreservesExisting(t *testing.T) {
	ctx := context.Background()
	db := openScanDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE a (id INTEGER)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE b (id INTEGER)`)
	require.NoError(t, err)

	full, err := Scan(ctx, db, ScanOptions{Parse: true})
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `ALTER TABLE b ADD COLUMN note TEXT`)
	require.NoError(t, err)

	cat := grammar.CategoryTable
	partial, err := Scan(ctx, db, ScanOptions{Existing: full, Category: &cat, Name: "b", Parse: true})
	require.NoError(t, err)

	a, ok := partial.Get(grammar.CategoryTable, "a")
	require.True(t, ok)
	assert.Same(t, mustItem(t, full, "a"), a, "item outside the rescan scope should be carried over untouched")

	b, ok := partial.Get(grammar.CategoryTable, "b")
	require.True(t, ok)
	require.Len(t, b.Columns, 2)
}

func mustItem(t *testing.T, c *Cache, name string) *Item {
	t.Helper()
	it, ok := c.Get(grammar.CategoryTable, name)
	require.True(t, ok)
	return it
}

func TestScanWithoutParseLeavesMetaNil(t *testing.T) {
	ctx := context.Background()
	db := openScanDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE t (a INTEGER)`)
	require.NoError(t, err)

	cache, err := Scan(ctx, db, ScanOptions{Parse: false})
	require.NoError(t, err)

	item, ok := cache.Get(grammar.CategoryTable, "t")
	require.True(t, ok)
	assert.Nil(t, item.Meta)
	assert.Nil(t, item.ParseErr)
	require.Len(t, item.Columns, 1, "PRAGMA-derived columns still populate without parsing")
}

func TestScanWithCountPopulatesRowCount(t *testing.T) {
	ctx := context.Background()
	db := openScanDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE t (a INTEGER)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO t (a) VALUES (1), (2), (3)`)
	require.NoError(t, err)

	cache, err := Scan(ctx, db, ScanOptions{
		Parse:                     true,
		Count:                     true,
		MaxDBSizeForFullCount:     1_000_000,
		MaxTableRowIDForFullCount: 10_000,
	})
	require.NoError(t, err)

	item, ok := cache.Get(grammar.CategoryTable, "t")
	require.True(t, ok)
	require.NotNil(t, item.RowCount)
	assert.EqualValues(t, 3, *item.RowCount)
	assert.False(t, item.CountEstimated)
}

func TestScanProgressCanAbort(t *testing.T) {
	ctx := context.Background()
	db := openScanDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE a (id INTEGER)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE b (id INTEGER)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE c (id INTEGER)`)
	require.NoError(t, err)

	seen := 0
	cache, err := Scan(ctx, db, ScanOptions{
		Parse: true,
		Progress: func(done, total int) bool {
			seen++
			return done < 2
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.Len(t, cache.All(), 2, "scan stops adding items once progress returns false")
}
