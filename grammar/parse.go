package grammar

import "strings"

// ParseOptions configures Parse.
type ParseOptions struct {
	// ExpectedCategory, if set, causes Parse to fail with
	// *UnexpectedCategory when the parsed statement belongs to a
	// different category.
	ExpectedCategory Category
	// Renames, if set, is applied to the parsed meta before it is
	// returned (spec 4.1: "applies before regeneration").
	Renames *Renames
}

// Parse tokenizes and parses one SQLite CREATE statement into a Meta tree.
func Parse(sql string, opts ParseOptions) (*Meta, error) {
	toks := Tokenize(sql)
	c := newCursor(toks)
	m, err := parseCreate(c)
	if err != nil {
		return nil, err
	}
	m.Comments = collectComments(toks)
	if opts.ExpectedCategory != "" && m.Type.Category() != opts.ExpectedCategory {
		return nil, &UnexpectedCategory{Expected: string(opts.ExpectedCategory), Got: string(m.Type.Category())}
	}
	if opts.Renames != nil {
		m = Rename(m, opts.Renames)
	}
	return m, nil
}

func collectComments(toks []Token) []string {
	var out []string
	for _, t := range toks {
		if t.Kind == KindComment {
			out = append(out, strings.TrimSpace(t.Value))
		}
	}
	return out
}

var constraintStarters = []string{
	"CONSTRAINT", "PRIMARY", "NOT", "UNIQUE", "DEFAULT", "CHECK", "COLLATE", "REFERENCES",
}

func parseCreate(c *cursor) (*Meta, error) {
	if err := c.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	flags := Flags{}
	if c.eatKeyword("TEMP") || c.eatKeyword("TEMPORARY") {
		flags["TEMPORARY"] = true
	}
	switch {
	case c.eatKeyword("TABLE"):
		return parseCreateTable(c, flags)
	case c.eatKeyword("UNIQUE"):
		if err := c.expectKeyword("INDEX"); err != nil {
			return nil, err
		}
		flags["UNIQUE"] = true
		return parseCreateIndex(c, flags)
	case c.eatKeyword("INDEX"):
		return parseCreateIndex(c, flags)
	case c.eatKeyword("TRIGGER"):
		return parseCreateTrigger(c, flags)
	case c.eatKeyword("VIEW"):
		return parseCreateView(c, flags)
	case c.eatKeyword("VIRTUAL"):
		if err := c.expectKeyword("TABLE"); err != nil {
			return nil, err
		}
		return parseCreateVirtualTable(c, flags)
	default:
		t := c.cur()
		return nil, errf(t.Line, t.Column, "unsupported statement kind starting at %q", t.Raw)
	}
}

func parseIfNotExists(c *cursor, flags Flags) {
	if c.isKeyword("IF") {
		save := c.pos
		c.advance()
		if c.eatKeyword("NOT") && c.eatKeyword("EXISTS") {
			flags["IF NOT EXISTS"] = true
			return
		}
		c.pos = save
	}
}

func parseCreateTable(c *cursor, flags Flags) (*Meta, error) {
	parseIfNotExists(c, flags)
	schemaName, name, err := c.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	body := &TableBody{}
	if err := c.expectPunct("("); err != nil {
		return nil, err
	}
	for {
		if c.isKeyword("CONSTRAINT") || c.isKeyword("PRIMARY") || c.isKeyword("UNIQUE") ||
			c.isKeyword("CHECK") || c.isKeyword("FOREIGN") {
			tc, err := parseTableConstraint(c)
			if err != nil {
				return nil, err
			}
			body.Constraints = append(body.Constraints, tc)
		} else {
			col, err := parseColumnDef(c)
			if err != nil {
				return nil, err
			}
			body.Columns = append(body.Columns, col)
		}
		if c.eatPunct(",") {
			continue
		}
		break
	}
	if err := c.expectPunct(")"); err != nil {
		return nil, err
	}
	for {
		switch {
		case c.eatKeyword("WITHOUT"):
			if err := c.expectKeyword("ROWID"); err != nil {
				return nil, err
			}
			flags["WITHOUT ROWID"] = true
		case c.eatKeyword("STRICT"):
			flags["STRICT"] = true
		case c.eatPunct(","):
			continue
		default:
			goto done
		}
	}
done:
	m := &Meta{Type: TypeCreateTable, Name: name, Schema: schemaName, Flags: flags, Table: body}
	m.Tables = tableRefsFromTable(body)
	return m, nil
}

func parseColumnDef(c *cursor) (*Column, error) {
	name, err := c.parseName()
	if err != nil {
		return nil, err
	}
	typ := c.captureExpr(constraintStarters, []string{",", ")"})
	col := &Column{Name: name, Type: typ}
	for {
		if c.isPunct(",") || c.isPunct(")") {
			break
		}
		cc, err := parseColumnConstraint(c)
		if err != nil {
			return nil, err
		}
		if cc == nil {
			break
		}
		col.Constraints = append(col.Constraints, cc)
	}
	return col, nil
}

func parseColumnConstraint(c *cursor) (*ColumnConstraint, error) {
	var name string
	if c.eatKeyword("CONSTRAINT") {
		n, err := c.parseName()
		if err != nil {
			return nil, err
		}
		name = n
	}
	switch {
	case c.eatKeyword("PRIMARY"):
		if err := c.expectKeyword("KEY"); err != nil {
			return nil, err
		}
		var order string
		if c.eatKeyword("ASC") {
			order = "ASC"
		} else if c.eatKeyword("DESC") {
			order = "DESC"
		}
		auto := c.eatKeyword("AUTOINCREMENT")
		return &ColumnConstraint{Kind: ColPrimaryKey, Name: name, Order: order, Autoincrement: auto}, nil
	case c.eatKeyword("NOT"):
		if err := c.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &ColumnConstraint{Kind: ColNotNull, Name: name}, nil
	case c.eatKeyword("UNIQUE"):
		return &ColumnConstraint{Kind: ColUnique, Name: name}, nil
	case c.eatKeyword("DEFAULT"):
		var expr string
		if c.isPunct("(") {
			inner, err := c.captureBalancedParen()
			if err != nil {
				return nil, err
			}
			expr = "(" + inner + ")"
		} else {
			expr = c.captureExpr(constraintStarters, []string{",", ")"})
		}
		return &ColumnConstraint{Kind: ColDefault, Name: name, Expr: expr}, nil
	case c.eatKeyword("CHECK"):
		inner, err := c.captureBalancedParen()
		if err != nil {
			return nil, err
		}
		return &ColumnConstraint{Kind: ColCheck, Name: name, Expr: inner}, nil
	case c.eatKeyword("COLLATE"):
		coll, err := c.parseName()
		if err != nil {
			return nil, err
		}
		return &ColumnConstraint{Kind: ColCollate, Name: name, Collation: coll}, nil
	case c.eatKeyword("REFERENCES"):
		fk, err := parseForeignKeySpec(c)
		if err != nil {
			return nil, err
		}
		return &ColumnConstraint{Kind: ColForeignKey, Name: name, ForeignKeySpec: fk}, nil
	default:
		return nil, nil
	}
}

func parseForeignKeySpec(c *cursor) (*ForeignKeySpec, error) {
	table, err := c.parseName()
	if err != nil {
		return nil, err
	}
	fk := &ForeignKeySpec{RefTable: table}
	if c.isPunct("(") {
		inner, err := c.captureBalancedParen()
		if err != nil {
			return nil, err
		}
		for _, col := range splitTopLevel(inner, ',') {
			fk.RefColumns = append(fk.RefColumns, col)
		}
	}
loop:
	for {
		switch {
		case c.eatKeyword("ON"):
			switch {
			case c.eatKeyword("DELETE"):
				fk.OnDelete = parseRefAction(c)
			case c.eatKeyword("UPDATE"):
				fk.OnUpdate = parseRefAction(c)
			}
		case c.eatKeyword("MATCH"):
			n, err := c.parseName()
			if err != nil {
				return nil, err
			}
			fk.Match = n
		case c.isKeyword("DEFERRABLE") || (c.isKeyword("NOT") && c.isKeywordAt(1, "DEFERRABLE")):
			neg := c.eatKeyword("NOT")
			c.eatKeyword("DEFERRABLE")
			d := "DEFERRABLE"
			if neg {
				d = "NOT DEFERRABLE"
			}
			if c.eatKeyword("INITIALLY") {
				if c.eatKeyword("DEFERRED") {
					d += " INITIALLY DEFERRED"
				} else if c.eatKeyword("IMMEDIATE") {
					d += " INITIALLY IMMEDIATE"
				}
			}
			fk.Deferrable = d
		default:
			break loop
		}
	}
	return fk, nil
}

func parseRefAction(c *cursor) string {
	switch {
	case c.eatKeyword("CASCADE"):
		return "CASCADE"
	case c.eatKeyword("RESTRICT"):
		return "RESTRICT"
	case c.eatKeyword("NO"):
		c.eatKeyword("ACTION")
		return "NO ACTION"
	case c.eatKeyword("SET"):
		if c.eatKeyword("NULL") {
			return "SET NULL"
		}
		if c.eatKeyword("DEFAULT") {
			return "SET DEFAULT"
		}
	}
	return ""
}

func parseTableConstraint(c *cursor) (*TableConstraint, error) {
	var name string
	if c.eatKeyword("CONSTRAINT") {
		n, err := c.parseName()
		if err != nil {
			return nil, err
		}
		name = n
	}
	switch {
	case c.eatKeyword("PRIMARY"):
		if err := c.expectKeyword("KEY"); err != nil {
			return nil, err
		}
		inner, err := c.captureBalancedParen()
		if err != nil {
			return nil, err
		}
		return &TableConstraint{Kind: TblPrimaryKey, Name: name, Columns: indexedColNames(inner)}, nil
	case c.eatKeyword("UNIQUE"):
		inner, err := c.captureBalancedParen()
		if err != nil {
			return nil, err
		}
		return &TableConstraint{Kind: TblUnique, Name: name, Columns: indexedColNames(inner)}, nil
	case c.eatKeyword("CHECK"):
		inner, err := c.captureBalancedParen()
		if err != nil {
			return nil, err
		}
		return &TableConstraint{Kind: TblCheck, Name: name, Expr: inner}, nil
	case c.eatKeyword("FOREIGN"):
		if err := c.expectKeyword("KEY"); err != nil {
			return nil, err
		}
		inner, err := c.captureBalancedParen()
		if err != nil {
			return nil, err
		}
		if err := c.expectKeyword("REFERENCES"); err != nil {
			return nil, err
		}
		fk, err := parseForeignKeySpec(c)
		if err != nil {
			return nil, err
		}
		return &TableConstraint{Kind: TblForeignKey, Name: name, Columns: splitTopLevel(inner, ','), ForeignKeySpec: fk}, nil
	default:
		t := c.cur()
		return nil, errf(t.Line, t.Column, "expected table constraint, got %q", t.Raw)
	}
}

// indexedColNames extracts bare column names from a PRIMARY KEY/UNIQUE
// column list, discarding any trailing ASC/DESC.
func indexedColNames(inner string) []string {
	var out []string
	for _, part := range splitTopLevel(inner, ',') {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

func parseCreateIndex(c *cursor, flags Flags) (*Meta, error) {
	parseIfNotExists(c, flags)
	schemaName, name, err := c.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if err := c.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := c.parseName()
	if err != nil {
		return nil, err
	}
	inner, err := c.captureBalancedParen()
	if err != nil {
		return nil, err
	}
	var cols []IndexedColumn
	for _, part := range splitTopLevel(inner, ',') {
		cols = append(cols, parseIndexedColumn(part))
	}
	var where string
	if c.eatKeyword("WHERE") {
		where = c.captureExpr(nil, nil)
	}
	m := &Meta{
		Type:   TypeCreateIndex,
		Name:   name,
		Schema: schemaName,
		Flags:  flags,
		Index:  &IndexBody{Table: table, Columns: cols, Where: where},
	}
	m.Tables = []string{strings.ToLower(table)}
	return m, nil
}

func parseIndexedColumn(part string) IndexedColumn {
	trimmed := strings.TrimSpace(part)
	order := ""
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasSuffix(upper, " ASC"):
		order = "ASC"
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-4])
	case strings.HasSuffix(upper, " DESC"):
		order = "DESC"
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-5])
	}
	if isPlainIdent(trimmed) {
		return IndexedColumn{Name: trimmed, Order: order}
	}
	return IndexedColumn{Expr: trimmed, Order: order}
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	toks := Tokenize(s)
	sig := 0
	for _, t := range toks {
		if t.IsTrivia() || t.Kind == KindEOF {
			continue
		}
		sig++
		if sig > 1 || (t.Kind != KindIdent && t.Kind != KindQuoted) {
			return false
		}
	}
	return sig == 1
}

func parseCreateTrigger(c *cursor, flags Flags) (*Meta, error) {
	parseIfNotExists(c, flags)
	schemaName, name, err := c.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	body := &TriggerBody{}
	switch {
	case c.eatKeyword("BEFORE"):
		body.ActionTime = "BEFORE"
	case c.eatKeyword("AFTER"):
		body.ActionTime = "AFTER"
	case c.eatKeyword("INSTEAD"):
		if err := c.expectKeyword("OF"); err != nil {
			return nil, err
		}
		body.ActionTime = "INSTEAD OF"
	}
	switch {
	case c.eatKeyword("DELETE"):
		body.Event = "DELETE"
	case c.eatKeyword("INSERT"):
		body.Event = "INSERT"
	case c.eatKeyword("UPDATE"):
		body.Event = "UPDATE"
		if c.eatKeyword("OF") {
			for {
				col, err := c.parseName()
				if err != nil {
					return nil, err
				}
				body.UpdateOf = append(body.UpdateOf, col)
				if !c.eatPunct(",") {
					break
				}
			}
		}
	default:
		t := c.cur()
		return nil, errf(t.Line, t.Column, "expected DELETE, INSERT or UPDATE, got %q", t.Raw)
	}
	if err := c.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := c.parseName()
	if err != nil {
		return nil, err
	}
	body.Table = table
	if c.eatKeyword("FOR") {
		if err := c.expectKeyword("EACH"); err != nil {
			return nil, err
		}
		if err := c.expectKeyword("ROW"); err != nil {
			return nil, err
		}
		body.ForEachRow = true
	}
	if c.eatKeyword("WHEN") {
		body.When = c.captureExpr([]string{"BEGIN"}, nil)
	}
	if err := c.expectKeyword("BEGIN"); err != nil {
		return nil, err
	}
	bodyStart := c.curTokIndex()
	depth := 0
	for !c.atEnd() {
		if c.isKeyword("BEGIN") {
			depth++
		}
		if c.isKeyword("END") {
			if depth == 0 {
				break
			}
			depth--
		}
		c.advance()
	}
	bodyEnd := c.curTokIndex()
	body.Body = c.rawBetween(bodyStart, bodyEnd)
	if err := c.expectKeyword("END"); err != nil {
		return nil, err
	}
	m := &Meta{Type: TypeCreateTrigger, Name: name, Schema: schemaName, Flags: flags, Trigger: body}
	deps := map[string]struct{}{strings.ToLower(table): {}}
	for _, ref := range scanTableRefs(body.Body) {
		deps[ref] = struct{}{}
	}
	for _, ref := range scanTableRefs(body.When) {
		deps[ref] = struct{}{}
	}
	m.Tables = sortedKeys(deps)
	return m, nil
}

func parseCreateView(c *cursor, flags Flags) (*Meta, error) {
	parseIfNotExists(c, flags)
	schemaName, name, err := c.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	body := &ViewBody{}
	if c.isPunct("(") {
		inner, err := c.captureBalancedParen()
		if err != nil {
			return nil, err
		}
		body.Columns = splitTopLevel(inner, ',')
	}
	if err := c.expectKeyword("AS"); err != nil {
		return nil, err
	}
	body.Select = c.captureExpr(nil, nil)
	m := &Meta{Type: TypeCreateView, Name: name, Schema: schemaName, Flags: flags, View: body}
	m.Tables = scanTableRefs(body.Select)
	return m, nil
}

func parseCreateVirtualTable(c *cursor, flags Flags) (*Meta, error) {
	parseIfNotExists(c, flags)
	schemaName, name, err := c.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if err := c.expectKeyword("USING"); err != nil {
		return nil, err
	}
	module, err := c.parseName()
	if err != nil {
		return nil, err
	}
	body := &VirtualBody{Module: module}
	if c.isPunct("(") {
		inner, err := c.captureBalancedParen()
		if err != nil {
			return nil, err
		}
		body.Args = splitTopLevel(inner, ',')
	}
	m := &Meta{Type: TypeCreateVirtualTable, Name: name, Schema: schemaName, Flags: flags, Virtual: body}
	return m, nil
}

func tableRefsFromTable(body *TableBody) []string {
	seen := map[string]struct{}{}
	for _, col := range body.Columns {
		for _, cc := range col.Constraints {
			if cc.ForeignKeySpec != nil {
				seen[strings.ToLower(cc.RefTable)] = struct{}{}
			}
		}
	}
	for _, tc := range body.Constraints {
		if tc.ForeignKeySpec != nil {
			seen[strings.ToLower(tc.RefTable)] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// small, stable insertion sort keeps this dependency-free
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// scanTableRefs is a best-effort scan of a raw SQL fragment (a SELECT,
// trigger body or WHEN predicate) for table names in reference position:
// after FROM, JOIN, UPDATE, or INSERT INTO. It does not build a full
// expression/select parser; it recognizes those four keyword patterns
// token-by-token, which is sufficient for the dependency graph's
// forward-edge bookkeeping.
func scanTableRefs(raw string) []string {
	if raw == "" {
		return nil
	}
	toks := Tokenize(raw)
	c := newCursor(toks)
	seen := map[string]struct{}{}
	for !c.atEnd() {
		switch {
		case c.isKeyword("FROM") || c.isKeyword("JOIN") || c.isKeyword("UPDATE"):
			c.advance()
			if c.isName() {
				n, _ := c.parseName()
				seen[strings.ToLower(n)] = struct{}{}
			}
		case c.isKeyword("INTO"):
			c.advance()
			if c.isName() {
				n, _ := c.parseName()
				seen[strings.ToLower(n)] = struct{}{}
			}
		default:
			c.advance()
		}
	}
	return sortedKeys(seen)
}
