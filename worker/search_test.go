package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/sqlitely-dev/core/config"
	"github.com/sqlitely-dev/core/database"
	"github.com/sqlitely-dev/core/search"
)

func openWorkerTestDB(t *testing.T) *database.Database {
	t.Helper()
	ctx := context.Background()
	d, err := database.Open(ctx, ":memory:", config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSearchTaskStreamsHitsAndReleasesLock(t *testing.T) {
	d := openWorkerTestDB(t)
	ctx := context.Background()
	_, err := d.ExecuteAction(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`, "seed")
	require.NoError(t, err)
	_, err = d.ExecuteAction(ctx, `INSERT INTO notes (body) VALUES ('hello world')`, "seed")
	require.NoError(t, err)
	require.NoError(t, d.PopulateSchema(ctx))

	q, err := search.Parse(`hello`)
	require.NoError(t, err)

	owner := d.RegisterConsumer()
	defer d.UnregisterConsumer(owner)

	var last Result
	done := make(chan struct{})
	w := New()
	w.Submit(ctx, Search(d, owner, q, search.ModeData, false), func(r Result) {
		last = r
		if r.Done {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("search task did not complete")
	}
	assert.False(t, last.Cancelled)
	assert.Nil(t, last.Err)

	_, conflict := d.Locks().GetLock(nil, "")
	assert.False(t, conflict, "search's whole-database lock should be released once the task finishes")
}

func TestSearchTaskRefusesUnderConflictingLock(t *testing.T) {
	d := openWorkerTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.PopulateSchema(ctx))

	other := uuid.New()
	d.Locks().LockDatabase(other, "recovering")

	q, err := search.Parse(`anything`)
	require.NoError(t, err)

	owner := d.RegisterConsumer()
	defer d.UnregisterConsumer(owner)

	var last Result
	done := make(chan struct{})
	w := New()
	w.Submit(ctx, Search(d, owner, q, search.ModeData, false), func(r Result) {
		last = r
		if r.Done {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("search task did not complete")
	}
	require.Error(t, last.Err)
	var conflict *database.LockConflict
	require.ErrorAs(t, last.Err, &conflict)
	assert.Equal(t, "recovering", conflict.Label)
}

func TestAnalyzerTaskRefusesUnderConflictingLockWithoutRunningBinary(t *testing.T) {
	d := openWorkerTestDB(t)
	other := uuid.New()
	d.Locks().LockDatabase(other, "searching")

	owner := d.RegisterConsumer()
	defer d.UnregisterConsumer(owner)

	var last Result
	done := make(chan struct{})
	w := New()
	// binPath deliberately refers to a binary that does not exist: if the
	// lock check were skipped, this would fail with an exec error instead.
	w.Submit(context.Background(), Analyzer(d, owner, "/no/such/sqlite3_analyzer", d.Path()), func(r Result) {
		last = r
		if r.Done {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("analyzer task did not complete")
	}
	var conflict *database.LockConflict
	require.ErrorAs(t, last.Err, &conflict)
	assert.Equal(t, "searching", conflict.Label)
}
