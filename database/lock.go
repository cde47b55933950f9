package database

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sqlitely-dev/core/grammar"
)

// LockEntry is one active lock: which consumer holds it and the
// human-readable label surfaced in a LockConflict error.
type LockEntry struct {
	Owner uuid.UUID
	Label string
}

// LockRegistry tracks per-item locks held by workers or long-running
// mutations, implementing spec.md §4.3's conflict rule: a request for a
// specific (category, name) conflicts with any existing lock on that same
// item, and a request with a nil category (a whole-database operation such
// as vacuum or recover_data) conflicts with any lock at all.
type LockRegistry struct {
	mu      sync.Mutex
	entries map[string]LockEntry
}

// NewLockRegistry returns an empty LockRegistry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{entries: map[string]LockEntry{}}
}

func lockKey(category grammar.Category, name string) string {
	return string(category) + "\x00" + strings.ToLower(name)
}

// Lock registers owner as holding a lock on (category, name) with label.
func (r *LockRegistry) Lock(category grammar.Category, name string, owner uuid.UUID, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[lockKey(category, name)] = LockEntry{Owner: owner, Label: label}
}

// Unlock releases owner's lock on (category, name), if it still holds one.
func (r *LockRegistry) Unlock(category grammar.Category, name string, owner uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := lockKey(category, name)
	if e, ok := r.entries[k]; ok && e.Owner == owner {
		delete(r.entries, k)
	}
}

// UnlockAll releases every lock owner holds, used when a consumer
// unregisters or a worker terminates without explicitly unlocking.
func (r *LockRegistry) UnlockAll(owner uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.entries {
		if e.Owner == owner {
			delete(r.entries, k)
		}
	}
}

// GetLock reports the label of a conflicting lock, if one exists. A nil
// category means "does any lock at all exist" (the whole-database case);
// skip lists owners whose locks should not count as conflicting (typically
// the requester's own prior locks).
func (r *LockRegistry) GetLock(category *grammar.Category, name string, skip ...uuid.UUID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	skipSet := make(map[uuid.UUID]struct{}, len(skip))
	for _, s := range skip {
		skipSet[s] = struct{}{}
	}
	for k, e := range r.entries {
		if _, skipped := skipSet[e.Owner]; skipped {
			continue
		}
		parts := strings.SplitN(k, "\x00", 2)
		if len(parts) == 2 && parts[0] == "" && parts[1] == wholeDatabaseName {
			return e.Label, true
		}
		if category == nil {
			return e.Label, true
		}
		if len(parts) == 2 && grammar.Category(parts[0]) == *category && strings.EqualFold(parts[1], name) {
			return e.Label, true
		}
	}
	return "", false
}

// wholeDatabaseName is the sentinel key LockDatabase/UnlockDatabase store
// under: an entry there represents a lock on every item at once (vacuum,
// recover_data, a long-running search or sqlite3_analyzer pass) and
// conflicts with any GetLock request, scoped or not.
const wholeDatabaseName = "*"

// LockDatabase registers owner as holding a whole-database lock, the "long
// read" lock spec.md §4.5 describes for background operations like search
// and statistics analysis that touch arbitrary items.
func (r *LockRegistry) LockDatabase(owner uuid.UUID, label string) {
	r.Lock("", wholeDatabaseName, owner, label)
}

// UnlockDatabase releases owner's whole-database lock, if it still holds one.
func (r *LockRegistry) UnlockDatabase(owner uuid.UUID) {
	r.Unlock("", wholeDatabaseName, owner)
}

// firstOwner extracts the optional owner token mutating operations accept
// variadically, defaulting to the zero UUID when the caller passed none. A
// zero-value owner never matches a real consumer's token, so it is a safe
// "skip nothing" default for the lock-conflict checks below.
func firstOwner(owner []uuid.UUID) uuid.UUID {
	if len(owner) > 0 {
		return owner[0]
	}
	return uuid.Nil
}
