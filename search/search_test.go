package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlitely-dev/core/config"
	"github.com/sqlitely-dev/core/database"
	"github.com/sqlitely-dev/core/schema"
)

func openMemory(t *testing.T) *database.Database {
	t.Helper()
	ctx := context.Background()
	d, err := database.Open(ctx, ":memory:", config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestParseRejectsEmptyQuery(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}

func TestParseHandlesWordsPhrasesNegationAndOr(t *testing.T) {
	q, err := Parse(`foo "bar baz" -qux quux OR corge -column:notes`)
	require.NoError(t, err)
	require.Len(t, q.Terms, 5)
	assert.Equal(t, NodeWord, q.Terms[0].Kind)
	assert.Equal(t, "foo", q.Terms[0].Word)
	assert.Equal(t, NodePhrase, q.Terms[1].Kind)
	assert.Equal(t, "bar baz", q.Terms[1].Phrase)
	assert.Equal(t, NodeWord, q.Terms[2].Kind)
	assert.True(t, q.Terms[2].Negated)
	assert.Equal(t, NodeOr, q.Terms[3].Kind)
	require.Len(t, q.Terms[3].Children, 2)
	assert.Equal(t, NodeKeyword, q.Terms[4].Kind)
	assert.Equal(t, KeyColumn, q.Terms[4].KeywordKey)
	assert.True(t, q.Terms[4].Negated)
}

func TestParseLenientFallsBackOnUnterminatedGroup(t *testing.T) {
	q, err := ParseLenient(`foo (bar`)
	require.NoError(t, err)
	require.Len(t, q.Terms, 2)
}

// Scenario 5: "foo bar" -column:notes against (title, notes, body).
func TestCompileQuotedPhraseSkipsExcludedColumn(t *testing.T) {
	q, err := Parse(`"foo bar" -column:notes`)
	require.NoError(t, err)

	columns := []schema.ColumnInfo{
		{Position: 0, Name: "title", DeclaredType: "TEXT"},
		{Position: 1, Name: "notes", DeclaredType: "TEXT"},
		{Position: 2, Name: "body", DeclaredType: "TEXT"},
	}
	compiled, err := Compile("table", columns, q, false)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT * FROM "table" WHERE (COALESCE(title,'') LIKE :p0 ESCAPE '\') OR (COALESCE(body,'') LIKE :p2 ESCAPE '\')`,
		compiled.SQL)
	assert.Equal(t, "%foo bar%", compiled.Params["p0"])
	assert.Equal(t, "%foo bar%", compiled.Params["p2"])
	_, hasP1 := compiled.Params["p1"]
	assert.False(t, hasP1)
}

// Scenario 6: date:2012-06..2012-08 against a DATETIME created column.
func TestCompileDateRangeExpandsPartialDates(t *testing.T) {
	q, err := Parse(`date:2012-06..2012-08`)
	require.NoError(t, err)

	columns := []schema.ColumnInfo{
		{Position: 0, Name: "created", DeclaredType: "DATETIME"},
	}
	compiled, err := Compile("events", columns, q, false)
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM events WHERE (created >= :lo AND created <= :hi)`, compiled.SQL)
	assert.Equal(t, "2012-06-01", compiled.Params["lo"])
	assert.Equal(t, "2012-08-31", compiled.Params["hi"])
}

func TestCompileCaseSensitiveWordUsesGlob(t *testing.T) {
	q, err := Parse(`fo*o`)
	require.NoError(t, err)
	columns := []schema.ColumnInfo{{Position: 0, Name: "a", DeclaredType: "TEXT"}}
	compiled, err := Compile("t", columns, q, true)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "GLOB :p0")
	assert.Equal(t, "*fo*o*", compiled.Params["p0"])
}

func TestColumnFilterNeverIncreasesCandidateColumns(t *testing.T) {
	columns := []schema.ColumnInfo{
		{Position: 0, Name: "a", DeclaredType: "TEXT"},
		{Position: 1, Name: "b", DeclaredType: "TEXT"},
	}
	unfiltered, err := Parse(`hello`)
	require.NoError(t, err)
	filtered, err := Parse(`hello -column:b`)
	require.NoError(t, err)

	full, err := Compile("t", columns, unfiltered, false)
	require.NoError(t, err)
	restricted, err := Compile("t", columns, filtered, false)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(full.Params), len(restricted.Params))
}

func TestFindSpansCaseInsensitiveSubstring(t *testing.T) {
	spans := findSpans("Hello World", []string{"world"})
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 6, End: 11}, spans[0])
}

func TestFindSpansWildcardMatchesAnyRun(t *testing.T) {
	spans := findSpans("foobarbaz", []string{"foo*baz"})
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len("foobarbaz"), spans[0].End)
}

func TestFindSpansPhraseRequiresAdjacency(t *testing.T) {
	spans := findSpans("the quick brown fox", []string{"quick brown"})
	require.Len(t, spans, 1)

	none := findSpans("quick the brown", []string{"quick brown"})
	assert.Empty(t, none)
}

func TestRunDataStreamsHitsAndTerminatesWithDone(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	_, err := d.ExecuteAction(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY, title TEXT, body TEXT)`, "seed")
	require.NoError(t, err)
	_, err = d.ExecuteAction(ctx, `INSERT INTO notes (title, body) VALUES ('hello world', 'nothing here')`, "seed")
	require.NoError(t, err)
	_, err = d.ExecuteAction(ctx, `INSERT INTO notes (title, body) VALUES ('goodbye', 'world tour')`, "seed")
	require.NoError(t, err)
	require.NoError(t, d.PopulateSchema(ctx))

	q, err := Parse(`world`)
	require.NoError(t, err)

	var chunks []ResultsChunk
	err = Run(ctx, d, q, ModeData, false, func(c ResultsChunk) bool {
		chunks = append(chunks, c)
		return true
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.True(t, last.Done)
	assert.False(t, last.Cancelled)
	assert.Equal(t, 2, last.Total)
}

func TestRunMetaSearchesSchemaText(t *testing.T) {
	ctx := context.Background()
	d := openMemory(t)
	_, err := d.ExecuteAction(ctx, `CREATE TABLE widget (id INTEGER PRIMARY KEY)`, "seed")
	require.NoError(t, err)
	require.NoError(t, d.PopulateSchema(ctx))

	q, err := Parse(`widget`)
	require.NoError(t, err)

	var total int
	err = Run(ctx, d, q, ModeMeta, false, func(c ResultsChunk) bool {
		if c.Done {
			total = c.Total
		}
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRunCancelledEmitsDoneCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := openMemory(t)
	_, err := d.ExecuteAction(context.Background(), `CREATE TABLE t (a TEXT)`, "seed")
	require.NoError(t, err)
	require.NoError(t, d.PopulateSchema(context.Background()))
	cancel()

	q, err := Parse(`anything`)
	require.NoError(t, err)

	var last ResultsChunk
	err = Run(ctx, d, q, ModeData, false, func(c ResultsChunk) bool {
		last = c
		return true
	})
	require.NoError(t, err)
	assert.True(t, last.Done)
	assert.True(t, last.Cancelled)
}
