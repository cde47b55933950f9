// Package cmdapi assembles the sqlitely CLI's cobra command tree: one root
// command with a persistent --db flag, and a subcommand per facade
// operation (schema, search, export, integrity, worker).
package cmdapi

import (
	"github.com/spf13/cobra"
)

// Root is the entry point main.go executes.
var Root = &cobra.Command{
	Use:   "sqlitely",
	Short: "Inspect, search and export SQLite databases",
	Long:  "sqlitely opens a SQLite database and exposes its schema, full-text search and export operations from the command line.",
}

var rootFlags struct {
	dbPath string
}

func init() {
	Root.PersistentFlags().StringVarP(&rootFlags.dbPath, "db", "d", "", "path to the SQLite database file (required)")
	Root.AddCommand(schemaCmd, searchCmd, exportCmd, integrityCmd, workerCmd)
}
