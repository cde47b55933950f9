package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerSubmitDeliversTerminalResult(t *testing.T) {
	w := New()
	var mu sync.Mutex
	var got []Result
	done := make(chan struct{})

	w.Submit(context.Background(), func(ctx context.Context, emit ResultFunc) {
		emit(Result{Kind: "x", Payload: 1})
		emit(Result{Kind: "x", Payload: 2, Done: true})
	}, func(r Result) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
		if r.Done {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for terminal result")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.True(t, got[1].Done)
}

func TestWorkerSubmitPreemptsRunningTask(t *testing.T) {
	w := New()
	firstCancelled := make(chan struct{})
	firstStarted := make(chan struct{})

	w.Submit(context.Background(), func(ctx context.Context, emit ResultFunc) {
		close(firstStarted)
		<-ctx.Done()
		emit(Result{Kind: "first", Done: true, Cancelled: true})
		close(firstCancelled)
	}, func(Result) {})

	<-firstStarted

	secondDone := make(chan struct{})
	w.Submit(context.Background(), func(ctx context.Context, emit ResultFunc) {
		emit(Result{Kind: "second", Done: true})
	}, func(r Result) {
		if r.Done {
			close(secondDone)
		}
	})

	select {
	case <-firstCancelled:
	case <-time.After(time.Second):
		t.Fatal("first task was not cancelled")
	}
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second task never ran")
	}
}

func TestChecksumStreamsBlocksAndFinalDigests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	var final ChecksumResult
	done := make(chan struct{})
	w := New()
	w.Submit(context.Background(), Checksum(path), func(r Result) {
		if r.Done {
			final = r.Payload.(ChecksumResult)
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checksum did not complete")
	}
	assert.Equal(t, int64(len("hello world")), final.BytesRead)
	assert.NotEmpty(t, final.SHA1)
	assert.NotEmpty(t, final.MD5)
}

func TestChecksumCancelledEmitsCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	big := make([]byte, ChecksumBlockSize*3)
	require.NoError(t, os.WriteFile(path, big, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var last Result
	done := make(chan struct{})
	w := New()
	w.Submit(ctx, Checksum(path), func(r Result) {
		last = r
		if r.Done {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checksum did not terminate")
	}
	assert.True(t, last.Cancelled)
}

func TestDetectDatabaseFindsSQLiteMagic(t *testing.T) {
	dir := t.TempDir()
	sqlitePath := filepath.Join(dir, "real.db")
	require.NoError(t, os.WriteFile(sqlitePath, append([]byte("SQLite format 3\x00"), []byte("rest")...), 0o644))
	notSqlitePath := filepath.Join(dir, "plain.db")
	require.NoError(t, os.WriteFile(notSqlitePath, []byte("not a database"), 0o644))

	var found []string
	done := make(chan struct{})
	w := New()
	w.Submit(context.Background(), DetectDatabase([]string{dir}, nil), func(r Result) {
		if d, ok := r.Payload.(DetectedDatabase); ok {
			found = append(found, d.Path)
		}
		if r.Done {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("detect did not complete")
	}
	require.Len(t, found, 1)
	assert.Equal(t, sqlitePath, found[0])
}

func TestImportFolderListsFilesOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("bb"), 0o644))

	var candidates []ImportCandidate
	done := make(chan struct{})
	w := New()
	w.Submit(context.Background(), ImportFolder(dir, false), func(r Result) {
		if c, ok := r.Payload.(ImportCandidate); ok {
			candidates = append(candidates, c)
		}
		if r.Done {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("import folder scan did not complete")
	}
	assert.Len(t, candidates, 2)
}

func TestParseAnalyzerOutputExtractsTableStats(t *testing.T) {
	raw := `Page size in bytes................... 4096
Number of pages................................... 10
*** Table widget ***
Payload: 100
Unused bytes on pages: 20
Fragmentation: 5%
*** Table gadget ***
Payload: 50
`
	result := parseAnalyzerOutput(raw)
	require.Len(t, result.Tables, 2)
	assert.Equal(t, "widget", result.Tables[0].Name)
	assert.EqualValues(t, 100, result.Tables[0].PayloadBytes)
	assert.EqualValues(t, 20, result.Tables[0].UnusedBytes)
	assert.Equal(t, 5.0, result.Tables[0].FragmentedPct)
	assert.EqualValues(t, 10, result.TotalPages)
	assert.EqualValues(t, 40960, result.TotalBytes)
}

func TestPoolSubmitAndShutdown(t *testing.T) {
	p := NewPool(context.Background())
	done := make(chan struct{})
	p.Submit("generic", func(ctx context.Context, emit ResultFunc) {
		emit(Result{Kind: "generic", Done: true})
	}, func(r Result) {
		if r.Done {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool task did not complete")
	}
	require.NoError(t, p.Shutdown())
}
