package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sqlitely-dev/core/grammar"
)

// EstimateRowCount implements spec.md §4.2's row-count rule: exact if the
// database file is small enough, or if the table's MAX(rowid) is small
// enough; otherwise MAX(rowid) is returned as an estimate. WITHOUT ROWID
// tables have no rowid to sample cheaply, so they always get an exact
// COUNT(*).
func EstimateRowCount(ctx context.Context, eq ExecQuerier, table string, withoutRowID bool, fileSize, maxDBSizeForFullCount, maxTableRowIDForFullCount int64) (count int64, estimated bool, err error) {
	if withoutRowID || fileSize <= maxDBSizeForFullCount {
		n, err := exactCount(ctx, eq, table)
		return n, false, err
	}
	maxRowID, err := queryMaxRowID(ctx, eq, table)
	if err != nil {
		return 0, false, err
	}
	if maxRowID <= maxTableRowIDForFullCount {
		n, err := exactCount(ctx, eq, table)
		return n, false, err
	}
	return maxRowID, true, nil
}

func exactCount(ctx context.Context, eq ExecQuerier, table string) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", grammar.Quote(table, grammar.QuoteOptions{}))
	if err := eq.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func queryMaxRowID(ctx context.Context, eq ExecQuerier, table string) (int64, error) {
	var n sql.NullInt64
	q := fmt.Sprintf("SELECT MAX(rowid) FROM %s", grammar.Quote(table, grammar.QuoteOptions{}))
	if err := eq.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	if !n.Valid {
		return 0, nil
	}
	return n.Int64, nil
}
