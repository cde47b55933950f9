package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/sqlitely-dev/core/config"
	"github.com/sqlitely-dev/core/grammar"
	"github.com/sqlitely-dev/core/schema"
)

// Subscriber receives the events a Database emits while consumers interact
// with it: schema invalidation, action-log appends, long-task progress,
// worker results and lock changes. A host wires its own notification layer
// (UI refresh, IPC broadcast, whatever) by implementing this.
type Subscriber interface {
	SchemaInvalidated(category, name string)
	ActionLogged(entry ActionLogEntry)
	Progress(task string, index, total int, done bool)
	WorkerResult(kind string, payload any)
	LockChanged(category, name string, owner uuid.UUID, label string, acquired bool)
}

// ActionResult is what ExecuteAction returns for one mutating statement.
type ActionResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Database is the facade spec.md §4.3 describes: a single SQLite
// connection plus everything layered on top of it — the categorized
// schema cache, the lock registry, the bounded action log, and the
// parse-result memoization cache. All mutating operations serialize
// through mu, mirroring spec.md §5's single-writer concurrency rule.
type Database struct {
	mu   sync.Mutex
	db   *sql.DB
	path string

	temporary bool
	cfg       config.Config
	closed    bool

	consumers   map[uuid.UUID]struct{}
	locks       *LockRegistry
	cache       *schema.Cache
	actionLog   *ActionLog
	parseCache  *ParseCache
	subscribers []Subscriber
}

func newDatabase(db *sql.DB, path string, temporary bool, cfg config.Config) (*Database, error) {
	pc, err := NewParseCache(cfg.MaxParseCache)
	if err != nil {
		return nil, err
	}
	return &Database{
		db:         db,
		path:       path,
		temporary:  temporary,
		cfg:        cfg,
		consumers:  map[uuid.UUID]struct{}{},
		locks:      NewLockRegistry(),
		cache:      schema.NewCache(),
		actionLog:  NewActionLog(cfg.MaxActionHistory),
		parseCache: pc,
	}, nil
}

// Open opens (or creates) the SQLite file at path and runs an initial
// schema scan.
func Open(ctx context.Context, path string, cfg config.Config) (*Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite has no concurrent-writer story; one conn matches mu's single-writer rule
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	d, err := newDatabase(db, path, false, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := d.PopulateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenTemporary opens a throwaway SQLite file in the OS temp directory.
// The file is removed on Close.
func OpenTemporary(ctx context.Context, cfg config.Config) (*Database, error) {
	f, err := os.CreateTemp("", "sqlitely-*.sqlite")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	f.Close()
	d, err := Open(ctx, path, cfg)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	d.temporary = true
	return d, nil
}

// Close closes the underlying connection, removing the file if it was
// opened via OpenTemporary.
func (d *Database) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	temp, path := d.temporary, d.path
	db := d.db
	d.mu.Unlock()

	err := db.Close()
	if temp {
		os.Remove(path)
	}
	return err
}

// Path returns the filesystem path this Database was opened from.
func (d *Database) Path() string { return d.path }

// RegisterConsumer mints a fresh consumer token, spec.md §4.3's mechanism
// for tracking which workers/clients are attached so a close can refuse
// or warn when consumers remain.
func (d *Database) RegisterConsumer() uuid.UUID {
	id := uuid.New()
	d.mu.Lock()
	d.consumers[id] = struct{}{}
	d.mu.Unlock()
	return id
}

// UnregisterConsumer releases a consumer token and any locks it still holds.
func (d *Database) UnregisterConsumer(id uuid.UUID) {
	d.mu.Lock()
	delete(d.consumers, id)
	d.mu.Unlock()
	d.locks.UnlockAll(id)
}

// HasConsumers reports whether any consumer is still registered.
func (d *Database) HasConsumers() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.consumers) > 0
}

// Subscribe registers s to receive future events.
func (d *Database) Subscribe(s Subscriber) {
	d.mu.Lock()
	d.subscribers = append(d.subscribers, s)
	d.mu.Unlock()
}

func (d *Database) notifySchemaInvalidated(category, name string) {
	for _, s := range d.subscribersSnapshot() {
		s.SchemaInvalidated(category, name)
	}
}

func (d *Database) notifyActionLogged(e ActionLogEntry) {
	for _, s := range d.subscribersSnapshot() {
		s.ActionLogged(e)
	}
}

func (d *Database) notifyLockChanged(category grammar.Category, name string, owner uuid.UUID, label string, acquired bool) {
	for _, s := range d.subscribersSnapshot() {
		s.LockChanged(string(category), name, owner, label, acquired)
	}
}

func (d *Database) subscribersSnapshot() []Subscriber {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Subscriber, len(d.subscribers))
	copy(out, d.subscribers)
	return out
}

// Locks exposes the lock registry so workers can take/release item locks
// directly (e.g. the analyzer locking the whole database).
func (d *Database) Locks() *LockRegistry { return d.locks }

// ActionHistory returns the bounded action-log entries recorded so far.
func (d *Database) ActionHistory() []ActionLogEntry { return d.actionLog.All() }

func (d *Database) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.QueryRowContext(ctx, query, args...)
}

// Execute runs a read query and returns its row iterator. Callers own the
// returned *sql.Rows and must Close it.
func (d *Database) Execute(ctx context.Context, sqlText string, args ...any) (*sql.Rows, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, &Closed{}
	}
	rows, err := d.db.QueryContext(ctx, sqlText, args...)
	d.mu.Unlock()
	if err != nil {
		return nil, &QueryError{SQL: sqlText, DriverMessage: err.Error()}
	}
	return rows, nil
}

// ExecuteAction runs one mutating statement, appends it to the action log,
// and invalidates the schema cache if the statement is DDL. name labels the
// action log entry (a human-facing description, not the SQL itself). owner,
// if given, is the caller's consumer token: a DDL statement (CREATE, ALTER,
// DROP, REINDEX, VACUUM) is refused with a LockConflict if any other owner
// holds a lock, per spec.md §4.5's drop/vacuum/reindex rule. Statement text
// alone doesn't reliably name every item a DDL statement touches, so the
// check is whole-database, the same conservative scope RecoverData uses.
func (d *Database) ExecuteAction(ctx context.Context, sqlText, name string, owner ...uuid.UUID) (ActionResult, error) {
	if isSchemaAltering(sqlText) {
		if label, conflict := d.locks.GetLock(nil, "", firstOwner(owner)); conflict {
			return ActionResult{}, &LockConflict{Label: label}
		}
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ActionResult{}, &Closed{}
	}
	res, err := d.db.ExecContext(ctx, sqlText)
	d.mu.Unlock()
	if err != nil {
		return ActionResult{}, &QueryError{SQL: sqlText, DriverMessage: err.Error()}
	}
	ra, _ := res.RowsAffected()
	li, _ := res.LastInsertId()

	entry := ActionLogEntry{Name: name, SQL: sqlText, Timestamp: time.Now(), RowsAffected: ra}
	d.actionLog.Append(entry)
	d.notifyActionLogged(entry)

	if isSchemaAltering(sqlText) {
		d.cache.MarkStale()
		d.notifySchemaInvalidated("", "")
	}
	return ActionResult{RowsAffected: ra, LastInsertID: li}, nil
}

// ExecuteScript splits sqlText on statement boundaries (respecting trigger
// body nesting) and runs each as an ExecuteAction in order, stopping at the
// first failure.
func (d *Database) ExecuteScript(ctx context.Context, sqlText, name string) ([]ActionResult, error) {
	stmts := grammar.SplitScript(sqlText)
	results := make([]ActionResult, 0, len(stmts))
	for _, stmt := range stmts {
		res, err := d.ExecuteAction(ctx, stmt, name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func isSchemaAltering(sqlText string) bool {
	toks := grammar.Tokenize(sqlText)
	for _, t := range toks {
		if t.IsTrivia() {
			continue
		}
		if t.Kind != grammar.KindIdent {
			return false
		}
		switch strings.ToUpper(t.Value) {
		case "CREATE", "ALTER", "DROP", "REINDEX", "VACUUM":
			return true
		}
		return false
	}
	return false
}

// PopulateSchemaOptions configures a PopulateSchemaWithOptions call, per
// spec.md §4.3's populate_schema(category?, name?, count?, parse?,
// progress?) contract.
type PopulateSchemaOptions struct {
	// Category and Name scope the rescan to a single item; the zero value
	// of each (nil, "") rescans everything. Scoping makes the call a
	// partial refresh: items outside the scope are carried over from the
	// current cache rather than re-read.
	Category *grammar.Category
	Name     string

	// Parse controls whether each scanned item's CREATE SQL is parsed.
	// PopulateSchema's zero-argument form sets this true; a caller building
	// PopulateSchemaOptions directly must set it explicitly to get a parsed
	// scan rather than a PRAGMA-only one.
	Parse bool
	// Count populates RowCount/CountEstimated on every scanned table.
	Count bool

	// Progress, if set, is called after each scanned item with the running
	// count and total; returning false aborts the scan cooperatively,
	// leaving the cache built from whatever was already scanned.
	Progress func(done, total int) bool
}

// PopulateSchema rescans sqlite_master and PRAGMA introspection, replacing
// the cached schema with a fully parsed, whole-database scan. It is
// equivalent to PopulateSchemaWithOptions(ctx, PopulateSchemaOptions{Parse: true}).
func (d *Database) PopulateSchema(ctx context.Context) error {
	return d.PopulateSchemaWithOptions(ctx, PopulateSchemaOptions{Parse: true})
}

// PopulateSchemaWithOptions implements spec.md §4.3's populate_schema
// contract: see PopulateSchemaOptions for what each field controls.
func (d *Database) PopulateSchemaWithOptions(ctx context.Context, opts PopulateSchemaOptions) error {
	d.mu.Lock()
	db := d.db
	existing := d.cache
	d.mu.Unlock()

	newCache, err := schema.Scan(ctx, db, schema.ScanOptions{
		Existing:                  existing,
		Category:                  opts.Category,
		Name:                      opts.Name,
		Parse:                     opts.Parse,
		Count:                     opts.Count,
		FileSize:                  d.fileSize(),
		MaxDBSizeForFullCount:     d.cfg.MaxDBSizeForFullCount,
		MaxTableRowIDForFullCount: d.cfg.MaxTableRowIDForFullCount,
		Progress:                  opts.Progress,
	})
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.cache = newCache
	d.mu.Unlock()
	d.cache.ClearStale()

	cat := ""
	if opts.Category != nil {
		cat = string(*opts.Category)
	}
	d.notifySchemaInvalidated(cat, opts.Name)
	return nil
}

// EnsureFreshSchema rescans the schema if and only if it is marked stale,
// the poll-then-refresh half of spec.md §4.2 invariant (c): a DDL-altering
// ExecuteAction marks the cache stale, and long-running readers (like
// search.Run) call this before GetCache so they don't work from schema
// state a concurrent mutation has already invalidated.
func (d *Database) EnsureFreshSchema(ctx context.Context) error {
	if !d.GetCache().Stale() {
		return nil
	}
	return d.PopulateSchema(ctx)
}

// GetCache returns the current schema cache (populated by the last
// PopulateSchema call). It does not itself check staleness — callers that
// must not work from invalidated schema state call EnsureFreshSchema first.
func (d *Database) GetCache() *schema.Cache {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache
}

// GetCategory returns every item of one category.
func (d *Database) GetCategory(category grammar.Category) map[string]*schema.Item {
	return d.GetCache().Category(category)
}

// GetItem looks up a single schema item.
func (d *Database) GetItem(category grammar.Category, name string) (*schema.Item, bool) {
	return d.GetCache().Get(category, name)
}

// GetRowID reports the rowid expression to use for a table: "rowid" for
// ordinary tables, "NULL" for WITHOUT ROWID tables (which have none),
// matching spec.md §4.2.
func (d *Database) GetRowID(table string) string {
	item, ok := d.GetItem(grammar.CategoryTable, table)
	if ok && item.Meta != nil && item.Meta.Flags.Has("WITHOUT ROWID") {
		return "NULL"
	}
	return "rowid"
}

// GetRowCount estimates (or exactly counts) a table's rows, per spec.md
// §4.2's size-threshold rule, and caches the result onto the table's Item
// so later lookups (schema listings, export progress) see it without
// re-querying until the next PopulateSchema.
func (d *Database) GetRowCount(ctx context.Context, table string) (count int64, estimated bool, err error) {
	item, ok := d.GetItem(grammar.CategoryTable, table)
	if !ok {
		return 0, false, fmt.Errorf("table %q not found", table)
	}
	withoutRowID := item.Meta != nil && item.Meta.Flags.Has("WITHOUT ROWID")
	fileSize := d.fileSize()
	d.mu.Lock()
	db := d.db
	d.mu.Unlock()
	n, estimated, err := schema.EstimateRowCount(ctx, db, table, withoutRowID, fileSize, d.cfg.MaxDBSizeForFullCount, d.cfg.MaxTableRowIDForFullCount)
	if err != nil {
		return 0, false, err
	}
	item.RowCount = &n
	item.CountEstimated = estimated
	return n, estimated, nil
}

func (d *Database) fileSize() int64 {
	if d.temporary {
		return 0
	}
	info, err := os.Stat(d.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// CheckIntegrity runs PRAGMA integrity_check and returns every message that
// is not the literal "ok" line.
func (d *Database) CheckIntegrity(ctx context.Context) ([]string, error) {
	rows, err := d.Execute(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "ok" {
			msgs = append(msgs, s)
		}
	}
	return msgs, rows.Err()
}

func (d *Database) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return &Closed{}
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
