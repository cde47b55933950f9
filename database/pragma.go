package database

import (
	"context"
	"fmt"
)

// PragmaType tags the value shape a PragmaSpec reports.
type PragmaType string

// Recognized pragma value shapes.
const (
	PragmaBool   PragmaType = "bool"
	PragmaInt    PragmaType = "int"
	PragmaString PragmaType = "string"
	PragmaTable  PragmaType = "table"
)

// PragmaSpec describes one PRAGMA the UI can surface: its SQLite name, a
// human label, and whether it is readable/writable. Not every SQLite
// pragma is cataloged here, only the ones a database manager commonly
// exposes; a host wanting a pragma outside this set can still issue it
// directly through Execute.
type PragmaSpec struct {
	Name        string
	Label       string
	Description string
	Type        PragmaType
	Values      []string // enumerated legal values, if Type is not freeform
	Readable    bool
	Writable    bool
}

// PragmaCatalog is the static list of pragmas GetPragmaValues reads.
var PragmaCatalog = []PragmaSpec{
	{Name: "foreign_keys", Label: "Foreign keys", Type: PragmaBool, Readable: true, Writable: true},
	{Name: "journal_mode", Label: "Journal mode", Type: PragmaString,
		Values: []string{"delete", "truncate", "persist", "memory", "wal", "off"}, Readable: true, Writable: true},
	{Name: "synchronous", Label: "Synchronous", Type: PragmaString,
		Values: []string{"off", "normal", "full", "extra"}, Readable: true, Writable: true},
	{Name: "encoding", Label: "Encoding", Type: PragmaString, Readable: true, Writable: false},
	{Name: "cache_size", Label: "Cache size", Type: PragmaInt, Readable: true, Writable: true},
	{Name: "user_version", Label: "User version", Type: PragmaInt, Readable: true, Writable: true},
	{Name: "application_id", Label: "Application ID", Type: PragmaInt, Readable: true, Writable: true},
	{Name: "auto_vacuum", Label: "Auto vacuum", Type: PragmaString,
		Values: []string{"none", "full", "incremental"}, Readable: true, Writable: true},
	{Name: "temp_store", Label: "Temp store", Type: PragmaString,
		Values: []string{"default", "file", "memory"}, Readable: true, Writable: true},
	{Name: "recursive_triggers", Label: "Recursive triggers", Type: PragmaBool, Readable: true, Writable: true},
}

// GetPragmaValues reads every readable PragmaCatalog entry's current value.
func GetPragmaValues(ctx context.Context, d *Database) (map[string]string, error) {
	out := make(map[string]string, len(PragmaCatalog))
	for _, spec := range PragmaCatalog {
		if !spec.Readable {
			continue
		}
		var v string
		row := d.queryRow(ctx, fmt.Sprintf("PRAGMA %s", spec.Name))
		if err := row.Scan(&v); err != nil {
			continue
		}
		out[spec.Name] = v
	}
	return out, nil
}
