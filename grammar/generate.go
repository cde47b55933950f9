package grammar

import "strings"

// Generate renders m back to canonical SQL. When indent is empty the
// statement is rendered on a single line. Otherwise CREATE TABLE puts each
// column and table constraint on its own line prefixed by indent, and
// CREATE TRIGGER breaks lines around its BEGIN...END body; CREATE INDEX,
// CREATE VIEW and CREATE VIRTUAL TABLE stay on one line whatever indent
// is. Generate does not
// reproduce the original statement's whitespace or comments byte-for-byte;
// Meta.Comments is carried as metadata rather than re-woven into the output.
func Generate(m *Meta, indent string) string {
	switch m.Type {
	case TypeCreateTable:
		return generateTable(m, indent)
	case TypeCreateIndex:
		return generateIndex(m, indent)
	case TypeCreateTrigger:
		return generateTrigger(m, indent)
	case TypeCreateView:
		return generateView(m, indent)
	case TypeCreateVirtualTable:
		return generateVirtualTable(m, indent)
	default:
		return ""
	}
}

func qualifiedName(schema, name string) string {
	if schema != "" {
		return Quote(schema, QuoteOptions{}) + "." + Quote(name, QuoteOptions{})
	}
	return Quote(name, QuoteOptions{})
}

func joinQuoted(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Quote(n, QuoteOptions{})
	}
	return strings.Join(out, ", ")
}

func generateTable(m *Meta, indent string) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if m.Flags.Has("TEMPORARY") {
		sb.WriteString("TEMPORARY ")
	}
	sb.WriteString("TABLE ")
	if m.Flags.Has("IF NOT EXISTS") {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(qualifiedName(m.Schema, m.Name))
	sb.WriteString(" (")
	sep, pad := itemSeparator(indent)
	var items []string
	for _, col := range m.Table.Columns {
		items = append(items, renderColumn(col))
	}
	for _, tc := range m.Table.Constraints {
		items = append(items, renderTableConstraint(tc))
	}
	if indent != "" && len(items) > 0 {
		sb.WriteString("\n")
		for i, it := range items {
			sb.WriteString(pad)
			sb.WriteString(it)
			if i < len(items)-1 {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(strings.Join(items, sep))
	}
	sb.WriteString(")")
	if m.Flags.Has("WITHOUT ROWID") {
		sb.WriteString(" WITHOUT ROWID")
	}
	if m.Flags.Has("STRICT") {
		sb.WriteString(" STRICT")
	}
	sb.WriteString(";")
	return sb.String()
}

func itemSeparator(indent string) (sep, pad string) {
	if indent == "" {
		return ", ", ""
	}
	return ",\n", indent
}

func renderColumn(col *Column) string {
	s := Quote(col.Name, QuoteOptions{})
	if col.Type != "" {
		s += " " + col.Type
	}
	for _, cc := range col.Constraints {
		s += " " + renderColumnConstraint(cc)
	}
	return s
}

func renderColumnConstraint(cc *ColumnConstraint) string {
	prefix := ""
	if cc.Name != "" {
		prefix = "CONSTRAINT " + Quote(cc.Name, QuoteOptions{}) + " "
	}
	switch cc.Kind {
	case ColPrimaryKey:
		s := "PRIMARY KEY"
		if cc.Order != "" {
			s += " " + cc.Order
		}
		if cc.Autoincrement {
			s += " AUTOINCREMENT"
		}
		return prefix + s
	case ColNotNull:
		return prefix + "NOT NULL"
	case ColUnique:
		return prefix + "UNIQUE"
	case ColDefault:
		return prefix + "DEFAULT " + cc.Expr
	case ColCheck:
		return prefix + "CHECK (" + cc.Expr + ")"
	case ColCollate:
		return prefix + "COLLATE " + cc.Collation
	case ColForeignKey:
		return prefix + "REFERENCES " + renderForeignKeySpec(cc.ForeignKeySpec)
	}
	return prefix
}

func renderForeignKeySpec(fk *ForeignKeySpec) string {
	if fk == nil {
		return ""
	}
	s := Quote(fk.RefTable, QuoteOptions{})
	if len(fk.RefColumns) > 0 {
		s += " (" + joinQuoted(fk.RefColumns) + ")"
	}
	if fk.OnDelete != "" {
		s += " ON DELETE " + fk.OnDelete
	}
	if fk.OnUpdate != "" {
		s += " ON UPDATE " + fk.OnUpdate
	}
	if fk.Match != "" {
		s += " MATCH " + fk.Match
	}
	if fk.Deferrable != "" {
		s += " " + fk.Deferrable
	}
	return s
}

func renderTableConstraint(tc *TableConstraint) string {
	prefix := ""
	if tc.Name != "" {
		prefix = "CONSTRAINT " + Quote(tc.Name, QuoteOptions{}) + " "
	}
	switch tc.Kind {
	case TblPrimaryKey:
		return prefix + "PRIMARY KEY (" + joinQuoted(tc.Columns) + ")"
	case TblUnique:
		return prefix + "UNIQUE (" + joinQuoted(tc.Columns) + ")"
	case TblCheck:
		return prefix + "CHECK (" + tc.Expr + ")"
	case TblForeignKey:
		return prefix + "FOREIGN KEY (" + joinQuoted(tc.Columns) + ") REFERENCES " + renderForeignKeySpec(tc.ForeignKeySpec)
	}
	return prefix
}

func generateIndex(m *Meta, indent string) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if m.Flags.Has("UNIQUE") {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX ")
	if m.Flags.Has("IF NOT EXISTS") {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(qualifiedName(m.Schema, m.Name))
	sb.WriteString(" ON ")
	sb.WriteString(Quote(m.Index.Table, QuoteOptions{}))
	sb.WriteString(" (")
	cols := make([]string, len(m.Index.Columns))
	for i, ic := range m.Index.Columns {
		if ic.Name != "" {
			cols[i] = Quote(ic.Name, QuoteOptions{})
		} else {
			cols[i] = ic.Expr
		}
		if ic.Order != "" {
			cols[i] += " " + ic.Order
		}
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(")")
	if m.Index.Where != "" {
		sb.WriteString(" WHERE " + m.Index.Where)
	}
	sb.WriteString(";")
	return sb.String()
}

func generateTrigger(m *Meta, indent string) string {
	tb := m.Trigger
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if m.Flags.Has("TEMPORARY") {
		sb.WriteString("TEMPORARY ")
	}
	sb.WriteString("TRIGGER ")
	if m.Flags.Has("IF NOT EXISTS") {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(qualifiedName(m.Schema, m.Name))
	nl := " "
	if indent != "" {
		nl = "\n"
	}
	sb.WriteString(nl)
	if tb.ActionTime != "" {
		sb.WriteString(tb.ActionTime + " ")
	}
	sb.WriteString(tb.Event)
	if len(tb.UpdateOf) > 0 {
		sb.WriteString(" OF " + joinQuoted(tb.UpdateOf))
	}
	sb.WriteString(" ON " + Quote(tb.Table, QuoteOptions{}))
	if tb.ForEachRow {
		sb.WriteString(" FOR EACH ROW")
	}
	if tb.When != "" {
		sb.WriteString(" WHEN " + tb.When)
	}
	sb.WriteString(nl + "BEGIN" + nl)
	sb.WriteString(tb.Body)
	if !strings.HasSuffix(strings.TrimSpace(tb.Body), ";") {
		sb.WriteString(";")
	}
	sb.WriteString(nl + "END;")
	return sb.String()
}

func generateView(m *Meta, indent string) string {
	vb := m.View
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if m.Flags.Has("TEMPORARY") {
		sb.WriteString("TEMPORARY ")
	}
	sb.WriteString("VIEW ")
	if m.Flags.Has("IF NOT EXISTS") {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(qualifiedName(m.Schema, m.Name))
	if len(vb.Columns) > 0 {
		sb.WriteString(" (" + strings.Join(vb.Columns, ", ") + ")")
	}
	sb.WriteString(" AS ")
	sb.WriteString(vb.Select)
	sb.WriteString(";")
	return sb.String()
}

func generateVirtualTable(m *Meta, indent string) string {
	vb := m.Virtual
	var sb strings.Builder
	sb.WriteString("CREATE VIRTUAL TABLE ")
	if m.Flags.Has("IF NOT EXISTS") {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(qualifiedName(m.Schema, m.Name))
	sb.WriteString(" USING " + vb.Module)
	if len(vb.Args) > 0 {
		sb.WriteString(" (" + strings.Join(vb.Args, ", ") + ")")
	}
	sb.WriteString(";")
	return sb.String()
}
