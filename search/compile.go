package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sqlitely-dev/core/grammar"
	"github.com/sqlitely-dev/core/schema"
)

// Filters is the set of global table:/view:/column: restrictions
// collected from a parsed Query before per-relation compilation.
type Filters struct {
	Tables  map[string]bool // lower-cased name -> wanted (true) or excluded (-table:x)
	Views   map[string]bool
	Columns map[string]bool
}

func newFilters() *Filters {
	return &Filters{Tables: map[string]bool{}, Views: map[string]bool{}, Columns: map[string]bool{}}
}

// CollectFilters walks every node of q (including inside OR/AND groups)
// and gathers table:/view:/column: keywords. These are global: they do
// not contribute predicate text at their tree position.
func CollectFilters(q *Query) *Filters {
	f := newFilters()
	for _, t := range q.Terms {
		collectFiltersNode(t, f)
	}
	return f
}

func collectFiltersNode(n *Node, f *Filters) {
	switch n.Kind {
	case NodeKeyword:
		key := strings.ToLower(n.KeywordValue)
		switch n.KeywordKey {
		case KeyTable:
			f.Tables[key] = !n.Negated
		case KeyView:
			f.Views[key] = !n.Negated
		case KeyColumn:
			f.Columns[key] = !n.Negated
		}
	case NodeOr, NodeAnd:
		for _, c := range n.Children {
			collectFiltersNode(c, f)
		}
	}
}

// relationAllowed reports whether a relation named name (table or view)
// passes the table:/view: filters.
func (f *Filters) relationAllowed(isView bool, name string) bool {
	name = strings.ToLower(name)
	m := f.Tables
	if isView {
		m = f.Views
	}
	if len(m) == 0 {
		return true
	}
	wanted := false
	hasPositive := false
	for k, include := range m {
		if include {
			hasPositive = true
			if k == name {
				wanted = true
			}
		} else if k == name {
			return false
		}
	}
	if !hasPositive {
		return true
	}
	return wanted
}

// columnAllowed reports whether column passes the column: filters.
func (f *Filters) columnAllowed(name string) bool {
	name = strings.ToLower(name)
	if len(f.Columns) == 0 {
		return true
	}
	hasPositive := false
	for k, include := range f.Columns {
		if include {
			hasPositive = true
			if k == name {
				return true
			}
		} else if k == name {
			return false
		}
	}
	return !hasPositive
}

// CompiledQuery is a relation-specific compiled predicate plus the
// parameter bindings it requires.
type CompiledQuery struct {
	SQL    string
	Params map[string]any
}

// compileState tracks the positional param counter (by full column
// index) and accumulates date: range counters separately.
type compileState struct {
	columns   []schema.ColumnInfo
	filters   *Filters
	params    map[string]any
	dateCount int
}

// Compile builds a SELECT predicate for one relation. columns is the
// relation's full, position-ordered column list (PRAGMA table_info
// order); date-typed columns are those whose DeclaredType looks like
// DATE or DATETIME.
func Compile(relation string, columns []schema.ColumnInfo, q *Query, caseSensitive bool) (*CompiledQuery, error) {
	filters := CollectFilters(q)
	st := &compileState{columns: columns, filters: filters, params: map[string]any{}}

	var clauses []string
	for _, t := range q.Terms {
		clause, err := st.compileNode(t, caseSensitive)
		if err != nil {
			return nil, err
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	body := strings.Join(clauses, " AND ")
	if body == "" {
		body = "1=1"
	}
	return &CompiledQuery{
		SQL:    fmt.Sprintf("SELECT * FROM %s WHERE %s", grammar.Quote(relation, grammar.QuoteOptions{}), body),
		Params: st.params,
	}, nil
}

func (st *compileState) compileNode(n *Node, caseSensitive bool) (string, error) {
	switch n.Kind {
	case NodeWord:
		return st.compileText(n.Word, n.Negated, caseSensitive)
	case NodePhrase:
		return st.compileText(n.Phrase, n.Negated, caseSensitive)
	case NodeOr:
		var parts []string
		for _, c := range n.Children {
			p, err := st.compileNode(c, caseSensitive)
			if err != nil {
				return "", err
			}
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return "", nil
		}
		expr := "(" + strings.Join(parts, " OR ") + ")"
		return negateIf(expr, n.Negated), nil
	case NodeAnd:
		var parts []string
		for _, c := range n.Children {
			p, err := st.compileNode(c, caseSensitive)
			if err != nil {
				return "", err
			}
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return "", nil
		}
		expr := "(" + strings.Join(parts, " AND ") + ")"
		return negateIf(expr, n.Negated), nil
	case NodeKeyword:
		if n.KeywordKey == KeyDate {
			return st.compileDate(n)
		}
		// table:/view:/column: contribute no predicate text at this
		// position — they were already absorbed as global filters.
		return "", nil
	}
	return "", nil
}

func negateIf(expr string, negated bool) string {
	if negated {
		return "NOT " + expr
	}
	return expr
}

// compileText builds the per-column OR'd predicate for a word/phrase,
// assigning bind-param names by each column's position in the full
// column list so that excluded columns leave a gap in the numbering.
func (st *compileState) compileText(text string, negated, caseSensitive bool) (string, error) {
	var parts []string
	for _, col := range st.columns {
		if !st.filters.columnAllowed(col.Name) {
			continue
		}
		param := fmt.Sprintf(":p%d", col.Position)
		var cond string
		if caseSensitive {
			cond = fmt.Sprintf("(%s GLOB %s)", grammar.Quote(col.Name, grammar.QuoteOptions{}), param)
			st.params[param[1:]] = toGlob(text)
		} else {
			cond = fmt.Sprintf("(COALESCE(%s,'') LIKE %s ESCAPE '\\')", grammar.Quote(col.Name, grammar.QuoteOptions{}), param)
			st.params[param[1:]] = toLike(text)
		}
		parts = append(parts, cond)
	}
	if len(parts) == 0 {
		return "", nil
	}
	joined := strings.Join(parts, " OR ")
	if negated {
		return "NOT (" + joined + ")", nil
	}
	return joined, nil
}

// toLike escapes literal '%' and '_' then maps user '*' wildcards to '%'.
func toLike(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '*':
			b.WriteByte('%')
		default:
			b.WriteRune(r)
		}
	}
	return "%" + b.String() + "%"
}

// toGlob escapes '[' and '?' as GLOB character classes; '*' passes
// through as GLOB's own wildcard.
func toGlob(text string) string {
	var b strings.Builder
	b.WriteString("*")
	for _, r := range text {
		switch r {
		case '[':
			b.WriteString("[[]")
		case '?':
			b.WriteString("[?]")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("*")
	return b.String()
}

func isDateType(declared string) bool {
	d := strings.ToUpper(declared)
	return strings.Contains(d, "DATE")
}

// compileDate expands a date:value or date:a..b keyword into range or
// equality predicates against every DATE/DATETIME-typed column.
func (st *compileState) compileDate(n *Node) (string, error) {
	var dateCols []schema.ColumnInfo
	for _, col := range st.columns {
		if isDateType(col.DeclaredType) && st.filters.columnAllowed(col.Name) {
			dateCols = append(dateCols, col)
		}
	}
	if len(dateCols) == 0 {
		return "", nil
	}

	value := n.KeywordValue
	var parts []string
	if lo, hi, isRange := splitDateRange(value); isRange {
		loBound, hiBound, err := dateRangeBounds(lo, hi)
		if err != nil {
			return "", err
		}
		st.params["lo"] = loBound
		st.params["hi"] = hiBound
		for _, col := range dateCols {
			parts = append(parts, fmt.Sprintf("(%s >= :lo AND %s <= :hi)", grammar.Quote(col.Name, grammar.QuoteOptions{}), grammar.Quote(col.Name, grammar.QuoteOptions{})))
		}
	} else {
		param := fmt.Sprintf(":d%d", st.dateCount)
		st.dateCount++
		st.params[param[1:]] = expandWildcardDate(value)
		for _, col := range dateCols {
			parts = append(parts, fmt.Sprintf("(STRFTIME('%%Y-%%m-%%d', %s) LIKE %s)", grammar.Quote(col.Name, grammar.QuoteOptions{}), param))
		}
	}
	joined := strings.Join(parts, " OR ")
	if n.Negated {
		return "NOT (" + joined + ")", nil
	}
	return joined, nil
}

func splitDateRange(value string) (lo, hi string, isRange bool) {
	idx := strings.Index(value, "..")
	if idx < 0 {
		return "", "", false
	}
	return value[:idx], value[idx+2:], true
}

// dateRangeBounds expands partial dates (YYYY, YYYY-MM, YYYY-MM-DD) to
// day-precision lo/hi bounds. A missing lo defaults to the epoch-like
// minimum; a missing hi defaults to the far future.
func dateRangeBounds(lo, hi string) (string, string, error) {
	loBound := "0001-01-01"
	if lo != "" {
		b, err := expandLow(lo)
		if err != nil {
			return "", "", err
		}
		loBound = b
	}
	hiBound := "9999-12-31"
	if hi != "" {
		b, err := expandHigh(hi)
		if err != nil {
			return "", "", err
		}
		hiBound = b
	}
	return loBound, hiBound, nil
}

func expandLow(v string) (string, error) {
	y, m, d, precision, err := parsePartialDate(v)
	if err != nil {
		return "", err
	}
	switch precision {
	case 1:
		return fmt.Sprintf("%04d-01-01", y), nil
	case 2:
		return fmt.Sprintf("%04d-%02d-01", y, m), nil
	default:
		return fmt.Sprintf("%04d-%02d-%02d", y, m, d), nil
	}
}

func expandHigh(v string) (string, error) {
	y, m, d, precision, err := parsePartialDate(v)
	if err != nil {
		return "", err
	}
	switch precision {
	case 1:
		return fmt.Sprintf("%04d-12-31", y), nil
	case 2:
		lastDay := time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		return fmt.Sprintf("%04d-%02d-%02d", y, m, lastDay), nil
	default:
		return fmt.Sprintf("%04d-%02d-%02d", y, m, d), nil
	}
}

// parsePartialDate parses YYYY, YYYY-MM, or YYYY-MM-DD, returning the
// precision as the number of components present.
func parsePartialDate(v string) (year, month, day, precision int, err error) {
	parts := strings.Split(v, "-")
	switch len(parts) {
	case 1:
		if _, e := fmt.Sscanf(parts[0], "%04d", &year); e != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid date %q", v)
		}
		return year, 1, 1, 1, nil
	case 2:
		if _, e := fmt.Sscanf(parts[0], "%04d", &year); e != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid date %q", v)
		}
		if _, e := fmt.Sscanf(parts[1], "%02d", &month); e != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid date %q", v)
		}
		return year, month, 1, 2, nil
	case 3:
		if _, e := fmt.Sscanf(parts[0], "%04d", &year); e != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid date %q", v)
		}
		if _, e := fmt.Sscanf(parts[1], "%02d", &month); e != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid date %q", v)
		}
		if _, e := fmt.Sscanf(parts[2], "%02d", &day); e != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid date %q", v)
		}
		return year, month, day, 3, nil
	}
	return 0, 0, 0, 0, fmt.Errorf("invalid date %q", v)
}

// expandWildcardDate translates a '*' wildcard inside a single date
// value into its STRFTIME equality counterpart (LIKE-style), so the
// comparison still happens against the formatted string.
func expandWildcardDate(v string) string {
	return strings.ReplaceAll(v, "*", "%")
}

// OrderedRelationNames returns table or view names passing the
// table:/view: filters, sorted alphabetically — the stable iteration
// order spec.md's execution model calls for.
func OrderedRelationNames(c *schema.Cache, f *Filters, view bool) []string {
	cat := grammar.CategoryTable
	if view {
		cat = grammar.CategoryView
	}
	items := c.Category(cat)
	var names []string
	for _, it := range items {
		if f.relationAllowed(view, it.Name) {
			names = append(names, it.Name)
		}
	}
	sort.Strings(names)
	return names
}
