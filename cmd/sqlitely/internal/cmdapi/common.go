package cmdapi

import (
	"context"
	"fmt"

	"github.com/sqlitely-dev/core/config"
	"github.com/sqlitely-dev/core/database"
)

// openDB opens the database named by the persistent --db flag, populates
// its schema cache, and returns it. Every subcommand's RunE calls this
// first; the caller is responsible for closing the returned Database.
func openDB(ctx context.Context) (*database.Database, error) {
	if rootFlags.dbPath == "" {
		return nil, fmt.Errorf("--db is required")
	}
	d, err := database.Open(ctx, rootFlags.dbPath, config.Default())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rootFlags.dbPath, err)
	}
	if err := d.PopulateSchema(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("populate schema: %w", err)
	}
	return d, nil
}
