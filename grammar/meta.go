package grammar

// Category identifies the kind of schema entity a statement declares.
type Category string

// Recognized schema item categories.
const (
	CategoryTable   Category = "table"
	CategoryView    Category = "view"
	CategoryIndex   Category = "index"
	CategoryTrigger Category = "trigger"
)

// StatementType is the canonical `__type__` tag of a parsed statement.
type StatementType string

// Recognized statement types.
const (
	TypeCreateTable        StatementType = "CREATE TABLE"
	TypeCreateIndex        StatementType = "CREATE INDEX"
	TypeCreateTrigger      StatementType = "CREATE TRIGGER"
	TypeCreateView         StatementType = "CREATE VIEW"
	TypeCreateVirtualTable StatementType = "CREATE VIRTUAL TABLE"
)

// Category reports the schema category a statement type belongs to.
func (t StatementType) Category() Category {
	switch t {
	case TypeCreateTable, TypeCreateVirtualTable:
		return CategoryTable
	case TypeCreateView:
		return CategoryView
	case TypeCreateIndex:
		return CategoryIndex
	case TypeCreateTrigger:
		return CategoryTrigger
	}
	return ""
}

// Meta is the parsed, typed representation of one CREATE statement. Exactly
// one of Table, Index, Trigger, View or Virtual is populated, matching
// Type.
type Meta struct {
	Type   StatementType
	Name   string
	Schema string // optional schema qualifier, e.g. "main"
	Flags  Flags

	// Tables holds the lower-cased names of every table/view this
	// statement references — the forward dependency edge set
	// (spec's `__tables__`).
	Tables []string
	// Comments holds detached comment tokens found in the statement
	// (spec's `__comments__`).
	Comments []string

	Table   *TableBody
	Index   *IndexBody
	Trigger *TriggerBody
	View    *ViewBody
	Virtual *VirtualBody
}

// Flags is the flag set carried by a Meta: IF NOT EXISTS, TEMPORARY,
// UNIQUE, WITHOUT ROWID, and so on.
type Flags map[string]bool

// Has reports whether flag is set.
func (f Flags) Has(flag string) bool { return f != nil && f[flag] }

// TableBody is the CREATE TABLE payload: columns plus table-level
// constraints, in declaration order.
type TableBody struct {
	Columns     []*Column
	Constraints []*TableConstraint
}

// Column is one column of a Table or View meta.
type Column struct {
	Name        string
	Type        string // free-form declared type, empty if untyped
	Constraints []*ColumnConstraint
}

// ColumnConstraintKind tags the payload carried by a ColumnConstraint.
type ColumnConstraintKind string

// Recognized column-constraint kinds.
const (
	ColPrimaryKey ColumnConstraintKind = "PRIMARY KEY"
	ColNotNull    ColumnConstraintKind = "NOT NULL"
	ColUnique     ColumnConstraintKind = "UNIQUE"
	ColDefault    ColumnConstraintKind = "DEFAULT"
	ColCheck      ColumnConstraintKind = "CHECK"
	ColCollate    ColumnConstraintKind = "COLLATE"
	ColForeignKey ColumnConstraintKind = "FOREIGN KEY"
)

// ColumnConstraint is one column-level constraint clause.
type ColumnConstraint struct {
	Kind ColumnConstraintKind
	Name string // optional CONSTRAINT name

	// PRIMARY KEY
	Order         string // "", "ASC" or "DESC"
	Autoincrement bool

	// DEFAULT / CHECK
	Expr string // raw expression text

	// COLLATE
	Collation string

	// FOREIGN KEY (inline REFERENCES clause)
	*ForeignKeySpec
}

// ForeignKeySpec is the shared payload of a FOREIGN KEY reference,
// whether declared inline on a column or as a table-level constraint.
type ForeignKeySpec struct {
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
	Match      string
	Deferrable string // "", "DEFERRABLE" or "DEFERRABLE INITIALLY DEFERRED" etc.
}

// TableConstraintKind tags the payload carried by a TableConstraint.
type TableConstraintKind string

// Recognized table-constraint kinds.
const (
	TblPrimaryKey TableConstraintKind = "PRIMARY KEY"
	TblUnique     TableConstraintKind = "UNIQUE"
	TblCheck      TableConstraintKind = "CHECK"
	TblForeignKey TableConstraintKind = "FOREIGN KEY"
)

// TableConstraint is one table-level constraint clause.
type TableConstraint struct {
	Kind    TableConstraintKind
	Name    string
	Columns []string
	Expr    string // CHECK expression raw text

	*ForeignKeySpec
}

// IndexBody is the CREATE INDEX payload.
type IndexBody struct {
	Table   string
	Columns []IndexedColumn
	Where   string // raw partial-index predicate, empty if none
}

// IndexedColumn is one column or expression inside an index's column list.
type IndexedColumn struct {
	Name  string // column name, empty if Expr is an expression
	Expr  string // raw expression text, empty if Name is a plain column
	Order string // "", "ASC" or "DESC"
}

// TriggerBody is the CREATE TRIGGER payload.
type TriggerBody struct {
	Table      string
	ActionTime string // BEFORE, AFTER or INSTEAD OF
	Event      string // DELETE, INSERT or UPDATE
	UpdateOf   []string
	ForEachRow bool
	When       string // raw WHEN predicate, empty if none
	Body       string // raw statement text between BEGIN and END
}

// ViewBody is the CREATE VIEW payload.
type ViewBody struct {
	Columns []string // explicit column list, empty if none given
	Select  string    // raw SELECT text
}

// VirtualBody is the CREATE VIRTUAL TABLE payload.
type VirtualBody struct {
	Module string
	Args   []string // raw, comma-split module arguments
}

// Clone returns a deep-enough copy of m suitable for independent mutation
// (used by renames and by flag-toggling transforms).
func (m *Meta) Clone() *Meta {
	if m == nil {
		return nil
	}
	c := *m
	c.Flags = make(Flags, len(m.Flags))
	for k, v := range m.Flags {
		c.Flags[k] = v
	}
	c.Tables = append([]string(nil), m.Tables...)
	c.Comments = append([]string(nil), m.Comments...)
	if m.Table != nil {
		tb := *m.Table
		tb.Columns = make([]*Column, len(m.Table.Columns))
		for i, col := range m.Table.Columns {
			cc := *col
			cc.Constraints = make([]*ColumnConstraint, len(col.Constraints))
			for j, con := range col.Constraints {
				cp := *con
				cc.Constraints[j] = &cp
			}
			tb.Columns[i] = &cc
		}
		tb.Constraints = make([]*TableConstraint, len(m.Table.Constraints))
		for i, con := range m.Table.Constraints {
			cp := *con
			cp.Columns = append([]string(nil), con.Columns...)
			tb.Constraints[i] = &cp
		}
		c.Table = &tb
	}
	if m.Index != nil {
		ib := *m.Index
		ib.Columns = append([]IndexedColumn(nil), m.Index.Columns...)
		c.Index = &ib
	}
	if m.Trigger != nil {
		tb := *m.Trigger
		tb.UpdateOf = append([]string(nil), m.Trigger.UpdateOf...)
		c.Trigger = &tb
	}
	if m.View != nil {
		vb := *m.View
		vb.Columns = append([]string(nil), m.View.Columns...)
		c.View = &vb
	}
	if m.Virtual != nil {
		vb := *m.Virtual
		vb.Args = append([]string(nil), m.Virtual.Args...)
		c.Virtual = &vb
	}
	return &c
}
