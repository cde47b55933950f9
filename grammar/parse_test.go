package grammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateTableRoundTrip(t *testing.T) {
	sql := `CREATE TABLE t (a INTEGER PRIMARY KEY, b TEXT NOT NULL DEFAULT 'x')`
	m, err := Parse(sql, ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, CategoryTable, m.Type.Category())
	assert.Equal(t, "t", m.Name)
	require.Len(t, m.Table.Columns, 2)
	assert.Equal(t, "a", m.Table.Columns[0].Name)
	assert.Equal(t, "INTEGER", m.Table.Columns[0].Type)
	require.Len(t, m.Table.Columns[0].Constraints, 1)
	assert.Equal(t, ColPrimaryKey, m.Table.Columns[0].Constraints[0].Kind)
	require.Len(t, m.Table.Columns[1].Constraints, 2)
	assert.Equal(t, ColNotNull, m.Table.Columns[1].Constraints[0].Kind)
	assert.Equal(t, ColDefault, m.Table.Columns[1].Constraints[1].Kind)
	assert.Equal(t, "'x'", m.Table.Columns[1].Constraints[1].Expr)

	got := Generate(m, "")
	want := `CREATE TABLE t (a INTEGER PRIMARY KEY, b TEXT NOT NULL DEFAULT 'x');`
	assert.Equal(t, want, got)
}

func TestParseCreateTableForeignKeyDependency(t *testing.T) {
	sql := `CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER REFERENCES customers(id) ON DELETE CASCADE,
		FOREIGN KEY (customer_id) REFERENCES customers(id)
	)`
	m, err := Parse(sql, ParseOptions{})
	require.NoError(t, err)
	assert.Contains(t, m.Tables, "customers")
	fk := m.Table.Columns[1].Constraints[0].ForeignKeySpec
	require.NotNil(t, fk)
	assert.Equal(t, "customers", fk.RefTable)
	assert.Equal(t, "CASCADE", fk.OnDelete)
}

func TestParseCreateIndex(t *testing.T) {
	sql := `CREATE UNIQUE INDEX idx_orders_customer ON orders (customer_id DESC) WHERE customer_id IS NOT NULL`
	m, err := Parse(sql, ParseOptions{ExpectedCategory: CategoryIndex})
	require.NoError(t, err)
	assert.True(t, m.Flags.Has("UNIQUE"))
	assert.Equal(t, "orders", m.Index.Table)
	require.Len(t, m.Index.Columns, 1)
	assert.Equal(t, "customer_id", m.Index.Columns[0].Name)
	assert.Equal(t, "DESC", m.Index.Columns[0].Order)
	assert.Contains(t, m.Index.Where, "customer_id")
}

func TestParseWrongCategoryError(t *testing.T) {
	sql := `CREATE TABLE t (a INTEGER)`
	_, err := Parse(sql, ParseOptions{ExpectedCategory: CategoryView})
	require.Error(t, err)
	var uc *UnexpectedCategory
	require.ErrorAs(t, err, &uc)
}

func TestParseCreateTrigger(t *testing.T) {
	sql := `CREATE TRIGGER trg_t AFTER UPDATE ON t
BEGIN
  UPDATE t SET b = NEW.b;
END`
	m, err := Parse(sql, ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "t", m.Trigger.Table)
	assert.Equal(t, "AFTER", m.Trigger.ActionTime)
	assert.Equal(t, "UPDATE", m.Trigger.Event)
	assert.Contains(t, m.Trigger.Body, "NEW.b")
	assert.Contains(t, m.Tables, "t")
}

func TestParseCreateView(t *testing.T) {
	sql := `CREATE VIEW v AS SELECT a, b FROM t WHERE a > 0`
	m, err := Parse(sql, ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "v", m.Name)
	assert.Contains(t, m.View.Select, "FROM t")
	assert.Contains(t, m.Tables, "t")
}

func TestParseCreateVirtualTable(t *testing.T) {
	sql := `CREATE VIRTUAL TABLE docs USING fts5(title, body)`
	m, err := Parse(sql, ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fts5", m.Virtual.Module)
	assert.Equal(t, []string{"title", "body"}, m.Virtual.Args)
}

func TestRenameTableAndTriggerColumns(t *testing.T) {
	createTable := `CREATE TABLE t (a INTEGER, b TEXT)`
	createTrigger := `CREATE TRIGGER trg_t AFTER UPDATE ON t
BEGIN
  UPDATE t SET b = NEW.b;
END`
	renames := &Renames{
		Tables: map[string]string{"t": "t2"},
		Columns: map[string]map[string]string{
			"t2": {"a": "a2", "b": "b2"},
		},
	}

	tableMeta, err := Parse(createTable, ParseOptions{Renames: renames})
	require.NoError(t, err)
	assert.Equal(t, "t2", tableMeta.Name)
	assert.Equal(t, "a2", tableMeta.Table.Columns[0].Name)
	assert.Equal(t, "b2", tableMeta.Table.Columns[1].Name)

	triggerMeta, err := Parse(createTrigger, ParseOptions{Renames: renames})
	require.NoError(t, err)
	assert.Equal(t, "t2", triggerMeta.Trigger.Table)
	assert.Contains(t, triggerMeta.Trigger.Body, "t2")
	assert.Contains(t, triggerMeta.Trigger.Body, "b2")
	assert.Contains(t, triggerMeta.Trigger.Body, "NEW.b2")
}

func TestRenameSchemaClear(t *testing.T) {
	sql := `CREATE TABLE t (a INTEGER)`
	set := "main"
	m, err := Parse(sql, ParseOptions{Renames: &Renames{Schema: &set}})
	require.NoError(t, err)
	assert.Equal(t, "main", m.Schema)

	cleared := ""
	m2 := Rename(m, &Renames{Schema: &cleared})
	assert.Equal(t, "", m2.Schema)
}

func TestSplitScriptHandlesTriggerBodies(t *testing.T) {
	script := `
CREATE TABLE t (a INTEGER);
CREATE TRIGGER trg_t AFTER INSERT ON t
BEGIN
  UPDATE t SET a = a + 1;
  SELECT 1;
END;
CREATE INDEX idx_t ON t (a);
`
	stmts := SplitScript(script)
	require.Len(t, stmts, 3)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE"))
	assert.Contains(t, stmts[1], "BEGIN")
	assert.Contains(t, stmts[1], "END")
	assert.True(t, strings.HasPrefix(stmts[2], "CREATE INDEX"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "'it''s'", FormatValue("it's"))
	assert.Equal(t, "1", FormatValue(true))
	assert.Equal(t, "X'ff00'", FormatValue([]byte{0xff, 0x00}))
}

func TestQuoteReservedAndSafe(t *testing.T) {
	assert.Equal(t, `"select"`, Quote("select", QuoteOptions{}))
	assert.Equal(t, "name", Quote("name", QuoteOptions{}))
	assert.Equal(t, `"2fa"`, Quote("2fa", QuoteOptions{}))
}
