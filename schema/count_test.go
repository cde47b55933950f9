package schema

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRows(t *testing.T, db *sql.DB, table string, maxRowID int64) {
	t.Helper()
	ctx := context.Background()
	_, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (id INTEGER PRIMARY KEY)`, table))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id) VALUES (?)`, table), maxRowID)
	require.NoError(t, err)
}

// TestEstimateRowCountExactWhenMaxRowIDSmall reproduces spec.md §8
// scenario 4's first half through the rowid gate: the file is reported as
// 2_000_000 bytes, over the 1_000_000-byte MaxDBSizeForFullCount
// threshold, but MAX(ROWID) is 500, under the 10_000
// MaxTableRowIDForFullCount threshold, so the count is still exact.
func TestEstimateRowCountExactWhenMaxRowIDSmall(t *testing.T) {
	db := openTestDB(t)
	seedRows(t, db, "small", 500)

	count, estimated, err := EstimateRowCount(context.Background(), db, "small", false,
		2_000_000, 1_000_000, 10_000)
	require.NoError(t, err)
	require.False(t, estimated)
	require.EqualValues(t, 1, count)
}

// TestEstimateRowCountEstimatesWhenMaxRowIDLarge reproduces spec.md §8
// scenario 4's second half: a 2 MiB database (over MaxDBSizeForFullCount)
// whose table has MAX(ROWID)=50_000 (over MaxTableRowIDForFullCount)
// reports the row count as MAX(ROWID), flagged estimated.
func TestEstimateRowCountEstimatesWhenMaxRowIDLarge(t *testing.T) {
	db := openTestDB(t)
	seedRows(t, db, "big", 50_000)

	count, estimated, err := EstimateRowCount(context.Background(), db, "big", false,
		2_000_000, 1_000_000, 10_000)
	require.NoError(t, err)
	require.True(t, estimated)
	require.EqualValues(t, 50_000, count)
}

func TestEstimateRowCountAlwaysExactForWithoutRowID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `CREATE TABLE wr (id TEXT PRIMARY KEY) WITHOUT ROWID`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO wr (id) VALUES ('a'), ('b')`)
	require.NoError(t, err)

	count, estimated, err := EstimateRowCount(ctx, db, "wr", true, 2_000_000, 1_000_000, 10)
	require.NoError(t, err)
	require.False(t, estimated)
	require.EqualValues(t, 2, count)
}
