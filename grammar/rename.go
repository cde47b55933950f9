package grammar

import "strings"

// Renames describes a structural rename to apply to a parsed Meta. Maps are
// keyed case-insensitively (compared via strings.EqualFold); Columns is
// further keyed by owner (the table or view the column belongs to), using
// the owner's *post-rename* name, matching how a caller composes a rename
// that both moves a table and its columns in one call.
type Renames struct {
	// Schema, when non-nil, sets the schema qualifier: a pointer to ""
	// clears it, a pointer to a non-empty string sets it.
	Schema *string
	// SchemaByName overrides Schema for a specific item name.
	SchemaByName map[string]string

	Tables   map[string]string
	Views    map[string]string
	Indexes  map[string]string
	Triggers map[string]string
	// Columns maps owner name -> old column name -> new column name.
	Columns map[string]map[string]string
}

func lookupRename(m map[string]string, name string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func lookupColumnMap(m map[string]map[string]string, owner string) (map[string]string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, owner) {
			return v, true
		}
	}
	return nil, false
}

// Rename returns a clone of m with r applied. A nil Renames or nil Meta is
// returned unchanged.
func Rename(m *Meta, r *Renames) *Meta {
	if m == nil || r == nil {
		return m
	}
	out := m.Clone()
	applySchema(out, r)

	switch out.Type.Category() {
	case CategoryTable:
		if nn, ok := lookupRename(r.Tables, out.Name); ok {
			out.Name = nn
		}
		renameTableColumns(out, r)
	case CategoryView:
		if nn, ok := lookupRename(r.Views, out.Name); ok {
			out.Name = nn
		}
		renameViewBody(out, r)
	case CategoryIndex:
		if nn, ok := lookupRename(r.Indexes, out.Name); ok {
			out.Name = nn
		}
		if nn, ok := lookupRename(r.Tables, out.Index.Table); ok {
			out.Index.Table = nn
		}
		renameIndexColumns(out, r)
	case CategoryTrigger:
		if nn, ok := lookupRename(r.Triggers, out.Name); ok {
			out.Name = nn
		}
		renameTriggerRefs(out, r)
	}
	out.Tables = renameDependencyList(out.Tables, r)
	return out
}

func applySchema(m *Meta, r *Renames) {
	if v, ok := lookupRename(r.SchemaByName, m.Name); ok {
		m.Schema = v
		return
	}
	if r.Schema != nil {
		m.Schema = *r.Schema
	}
}

func renameDependencyList(tables []string, r *Renames) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		nt := t
		if nn, ok := lookupRename(r.Tables, t); ok {
			nt = strings.ToLower(nn)
		} else if nn, ok := lookupRename(r.Views, t); ok {
			nt = strings.ToLower(nn)
		}
		out[i] = nt
	}
	return out
}

func renameTableColumns(m *Meta, r *Renames) {
	colMap, ok := lookupColumnMap(r.Columns, m.Name)
	if !ok {
		return
	}
	for _, col := range m.Table.Columns {
		if nn, ok := lookupRename(colMap, col.Name); ok {
			col.Name = nn
		}
		for _, cc := range col.Constraints {
			if cc.Kind == ColCheck || cc.Kind == ColDefault {
				cc.Expr = rewriteIdents(cc.Expr, colMap)
			}
		}
	}
	for _, tc := range m.Table.Constraints {
		for i, cname := range tc.Columns {
			if nn, ok := lookupRename(colMap, cname); ok {
				tc.Columns[i] = nn
			}
		}
		if tc.Kind == TblCheck {
			tc.Expr = rewriteIdents(tc.Expr, colMap)
		}
	}
}

func renameViewBody(m *Meta, r *Renames) {
	colMap, ok := lookupColumnMap(r.Columns, m.Name)
	if ok {
		for i, c := range m.View.Columns {
			if nn, ok := lookupRename(colMap, c); ok {
				m.View.Columns[i] = nn
			}
		}
	}
	m.View.Select = renameTableRefs(m.View.Select, r)
}

func renameIndexColumns(m *Meta, r *Renames) {
	colMap, ok := lookupColumnMap(r.Columns, m.Index.Table)
	if !ok {
		return
	}
	for i, ic := range m.Index.Columns {
		if ic.Name != "" {
			if nn, ok := lookupRename(colMap, ic.Name); ok {
				m.Index.Columns[i].Name = nn
			}
		} else {
			m.Index.Columns[i].Expr = rewriteIdents(ic.Expr, colMap)
		}
	}
	if m.Index.Where != "" {
		m.Index.Where = rewriteIdents(m.Index.Where, colMap)
	}
}

// renameTriggerRefs rewrites a trigger's target table/view, and the table
// and column references inside its WHEN predicate and body. Table renames
// are applied first so that the column map (keyed by the *post-rename*
// owner name) matches the identifiers left in the text.
func renameTriggerRefs(m *Meta, r *Renames) {
	tb := m.Trigger
	target := tb.Table
	if nn, ok := lookupRename(r.Tables, target); ok {
		target = nn
	} else if nn, ok := lookupRename(r.Views, target); ok {
		target = nn
	}
	tb.Table = target
	for i, c := range tb.UpdateOf {
		if colMap, ok := lookupColumnMap(r.Columns, target); ok {
			if nn, ok := lookupRename(colMap, c); ok {
				tb.UpdateOf[i] = nn
			}
		}
	}
	tb.When = renameTableRefs(tb.When, r)
	tb.Body = renameTableRefs(tb.Body, r)
	if colMap, ok := lookupColumnMap(r.Columns, target); ok {
		tb.When = renameTriggerColumnRefs(tb.When, target, colMap)
		tb.Body = renameTriggerColumnRefs(tb.Body, target, colMap)
	}
}

// renameTableRefs rewrites bare table/view name references that appear in
// FROM, JOIN, UPDATE or INSERT INTO position within a raw SQL fragment.
func renameTableRefs(raw string, r *Renames) string {
	if raw == "" {
		return ""
	}
	toks := Tokenize(raw)
	var sb strings.Builder
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == KindIdent {
			prev := prevSignificant(toks, i)
			if prev.Kind == KindIdent && isTableRefKeyword(prev.Value) {
				if nn, ok := lookupRename(r.Tables, t.Value); ok {
					sb.WriteString(requote(t, nn))
					continue
				}
				if nn, ok := lookupRename(r.Views, t.Value); ok {
					sb.WriteString(requote(t, nn))
					continue
				}
			}
		}
		sb.WriteString(t.Raw)
	}
	return sb.String()
}

func isTableRefKeyword(v string) bool {
	switch strings.ToUpper(v) {
	case "FROM", "JOIN", "UPDATE", "INTO":
		return true
	}
	return false
}

func prevSignificant(toks []Token, i int) Token {
	for j := i - 1; j >= 0; j-- {
		if !toks[j].IsTrivia() {
			return toks[j]
		}
	}
	return Token{Kind: KindEOF}
}

// renameTriggerColumnRefs rewrites bare column references and NEW.col /
// OLD.col / owner.col qualified references that belong to the trigger's
// target relation. It does not attempt full alias resolution: any
// dotted reference whose left side is NEW, OLD, or the target name itself
// is treated as owned by colMap; every other identifier is left alone.
func renameTriggerColumnRefs(raw, owner string, colMap map[string]string) string {
	if raw == "" {
		return ""
	}
	toks := Tokenize(raw)
	var sb strings.Builder
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != KindIdent && t.Kind != KindQuoted {
			sb.WriteString(t.Raw)
			continue
		}
		next := nextSig(toks, i)
		if next.Kind == KindPunct && next.Raw == "." {
			// qualifier.column: rename the column part only if the
			// qualifier is NEW, OLD, or the trigger's own target.
			if isOwnerQualifier(t.Value, owner) {
				sb.WriteString(t.Raw)
				continue
			}
			sb.WriteString(t.Raw)
			continue
		}
		prev := prevSignificant(toks, i)
		if prev.Kind == KindPunct && prev.Raw == "." {
			qual := prevQualifier(toks, i)
			if isOwnerQualifier(qual, owner) {
				if nn, ok := lookupRename(colMap, t.Value); ok {
					sb.WriteString(requote(t, nn))
					continue
				}
			}
			sb.WriteString(t.Raw)
			continue
		}
		if funcCallGuard(toks, i) {
			sb.WriteString(t.Raw)
			continue
		}
		if nn, ok := lookupRename(colMap, t.Value); ok {
			sb.WriteString(requote(t, nn))
			continue
		}
		sb.WriteString(t.Raw)
	}
	return sb.String()
}

func isOwnerQualifier(qual, owner string) bool {
	return strings.EqualFold(qual, "NEW") || strings.EqualFold(qual, "OLD") || strings.EqualFold(qual, owner)
}

func nextSig(toks []Token, i int) Token {
	for j := i + 1; j < len(toks); j++ {
		if !toks[j].IsTrivia() {
			return toks[j]
		}
	}
	return Token{Kind: KindEOF}
}

func prevQualifier(toks []Token, dotPos int) string {
	// dotPos is the index of the identifier after '.'; walk back past the
	// '.' to find the identifier before it.
	dot := -1
	for j := dotPos - 1; j >= 0; j-- {
		if !toks[j].IsTrivia() {
			dot = j
			break
		}
	}
	if dot < 0 {
		return ""
	}
	for j := dot - 1; j >= 0; j-- {
		if !toks[j].IsTrivia() {
			return toks[j].Value
		}
	}
	return ""
}

// funcCallGuard reports whether the identifier at i is immediately
// followed by '(' and so names a function call rather than a column.
func funcCallGuard(toks []Token, i int) bool {
	next := nextSig(toks, i)
	return next.Kind == KindPunct && next.Raw == "("
}

// rewriteIdents renames bare identifier tokens found in colMap, skipping
// identifiers that are immediately called as functions.
func rewriteIdents(raw string, colMap map[string]string) string {
	if raw == "" {
		return ""
	}
	toks := Tokenize(raw)
	var sb strings.Builder
	for i, t := range toks {
		if (t.Kind == KindIdent || t.Kind == KindQuoted) && !funcCallGuard(toks, i) {
			if nn, ok := lookupRename(colMap, t.Value); ok {
				sb.WriteString(requote(t, nn))
				continue
			}
		}
		sb.WriteString(t.Raw)
	}
	return sb.String()
}

// requote renders newName using the same quoting form the original token
// used (unquoted, double-quoted, backtick, or bracket), so an identifier
// rename doesn't change its quoting style.
func requote(t Token, newName string) string {
	if t.Kind == KindQuoted && len(t.Raw) >= 2 {
		switch t.Raw[0] {
		case '"':
			return `"` + strings.ReplaceAll(newName, `"`, `""`) + `"`
		case '`':
			return "`" + strings.ReplaceAll(newName, "`", "``") + "`"
		case '[':
			return "[" + newName + "]"
		}
	}
	return Quote(newName, QuoteOptions{})
}
