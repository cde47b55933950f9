package cmdapi

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlitely-dev/core/config"
	coreexport "github.com/sqlitely-dev/core/export"
	"github.com/sqlitely-dev/core/grammar"
)

var exportFlags struct {
	table string
	out   string
	txn   bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one table as SQL INSERT statements",
	Example: `
sqlitely export --db app.db --table customer --out customer.sql`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.table, "table", "", "table to export (required)")
	exportCmd.Flags().StringVar(&exportFlags.out, "out", "", "output .sql file (defaults to stdout)")
	exportCmd.Flags().BoolVar(&exportFlags.txn, "txn", true, "wrap rows in a single transaction")
	cobra.CheckErr(exportCmd.MarkFlagRequired("table"))
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	item, ok := d.GetItem(grammar.CategoryTable, exportFlags.table)
	if !ok {
		return fmt.Errorf("no table named %q", exportFlags.table)
	}

	columns := make([]string, len(item.Columns))
	for i, col := range item.Columns {
		columns[i] = col.Name
	}

	out := cmd.OutOrStdout()
	if exportFlags.out != "" {
		f, err := os.Create(exportFlags.out)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	sink := coreexport.NewSQLSink(out, exportFlags.table, exportFlags.txn)
	cfg := config.Default()
	job := coreexport.Job{
		Name:        exportFlags.table,
		SourceQuery: fmt.Sprintf("SELECT %s FROM %s", selectList(columns), grammar.Quote(exportFlags.table, grammar.QuoteOptions{})),
		Columns:     columns,
	}
	status := coreexport.Run(ctx, d, job, sink, coreexport.Pacing{SeekLength: cfg.SeekLength, SeekLeapLength: cfg.SeekLeapLength}, nil)
	if status.Err != nil {
		return status.Err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rows from %s\n", status.Rows, exportFlags.table)
	return nil
}

func selectList(columns []string) string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += grammar.Quote(c, grammar.QuoteOptions{})
	}
	return out
}
