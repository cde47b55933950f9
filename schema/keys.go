package schema

import "github.com/sqlitely-dev/core/grammar"

// Key is one entry of a key graph: a local column list, optionally naming
// its constraint and, for foreign keys, the referenced table and columns.
type Key struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
}

// GetKeys walks the parsed meta of tableName (column-level and
// table-level constraints) and returns its local keys (PRIMARY KEY and
// UNIQUE) and foreign keys, recovering constraint names that plain PRAGMA
// introspection loses. Returns (nil, nil) if the table is unknown or its
// SQL didn't parse.
func GetKeys(c *Cache, tableName string) (local, foreign []Key) {
	item, ok := c.Get(grammar.CategoryTable, tableName)
	if !ok || item.Meta == nil || item.Meta.Table == nil {
		return nil, nil
	}
	table := item.Meta.Table
	for _, col := range table.Columns {
		for _, cc := range col.Constraints {
			switch cc.Kind {
			case grammar.ColPrimaryKey, grammar.ColUnique:
				local = append(local, Key{Name: cc.Name, Columns: []string{col.Name}})
			case grammar.ColForeignKey:
				if cc.ForeignKeySpec != nil {
					foreign = append(foreign, Key{
						Name:       cc.Name,
						Columns:    []string{col.Name},
						RefTable:   cc.RefTable,
						RefColumns: cc.RefColumns,
					})
				}
			}
		}
	}
	for _, tc := range table.Constraints {
		switch tc.Kind {
		case grammar.TblPrimaryKey, grammar.TblUnique:
			local = append(local, Key{Name: tc.Name, Columns: tc.Columns})
		case grammar.TblForeignKey:
			if tc.ForeignKeySpec != nil {
				foreign = append(foreign, Key{
					Name:       tc.Name,
					Columns:    tc.Columns,
					RefTable:   tc.RefTable,
					RefColumns: tc.RefColumns,
				})
			}
		}
	}
	return local, foreign
}
