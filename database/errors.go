// Package database implements the facade that owns a single SQLite
// connection: consumer registration, the categorized schema cache, the
// lock registry, action log, parse-result memoization, and every
// operation spec.md §4.3 describes (execute/executeaction/executescript,
// populate_schema, get_sql, drop_column, rename, integrity check, data
// recovery, the PRAGMA catalog).
package database

import "fmt"

// QueryError wraps a driver failure from execute/executeaction/executescript.
type QueryError struct {
	SQL           string
	DriverMessage string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %s (sql: %s)", e.DriverMessage, e.SQL)
}

// SchemaConflict reports that a rename or clone target collides with an
// existing schema item name.
type SchemaConflict struct {
	Category string
	Name     string
}

func (e *SchemaConflict) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Category, e.Name)
}

// DependencyMissing reports that an export target is missing an item a
// requested item depends on.
type DependencyMissing struct {
	Category   string
	Name       string
	RequiredBy []string
}

func (e *DependencyMissing) Error() string {
	return fmt.Sprintf("%s %q is required by %v but is not present in the target", e.Category, e.Name, e.RequiredBy)
}

// LockConflict reports that a mutating operation was refused because an
// active lock conflicts with it.
type LockConflict struct {
	Label string
}

func (e *LockConflict) Error() string {
	return fmt.Sprintf("operation refused: %s", e.Label)
}

// IntegrityFailure wraps the non-"ok" lines PRAGMA integrity_check returned.
type IntegrityFailure struct {
	Messages []string
}

func (e *IntegrityFailure) Error() string {
	return fmt.Sprintf("integrity check failed: %v", e.Messages)
}

// Closed is returned by any operation attempted on a closed Database.
type Closed struct{}

func (e *Closed) Error() string { return "database is closed" }

// Cancelled signals a worker observed cooperative cancellation; it is a
// normal terminal state, not a failure, for worker emissions.
type Cancelled struct{}

func (e *Cancelled) Error() string { return "cancelled" }
