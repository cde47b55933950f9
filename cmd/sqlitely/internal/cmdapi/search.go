package cmdapi

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlitely-dev/core/search"
)

var searchFlags struct {
	mode          string
	caseSensitive bool
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search table/view data or schema text",
	Example: `
sqlitely search --db app.db '"order confirmed" -draft'
sqlitely search --db app.db --mode meta 'table:customer'`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.mode, "mode", "data", "data|meta")
	searchCmd.Flags().BoolVar(&searchFlags.caseSensitive, "case-sensitive", false, "match with GLOB instead of LIKE")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	owner := d.RegisterConsumer()
	defer d.UnregisterConsumer(owner)

	query, err := search.ParseLenient(args[0])
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}

	mode := search.ModeData
	if searchFlags.mode == "meta" {
		mode = search.ModeMeta
	}

	out := cmd.OutOrStdout()
	return search.Run(ctx, d, query, mode, searchFlags.caseSensitive, func(chunk search.ResultsChunk) bool {
		for _, hit := range chunk.Hits {
			fmt.Fprintf(out, "%s\t%s\t%v\n", hit.Category, hit.Relation, hit.Values)
		}
		if chunk.Done {
			fmt.Fprintf(out, "-- %d results%s\n", chunk.Total, cancelledSuffix(chunk.Cancelled))
		}
		return true
	}, owner)
}

func cancelledSuffix(cancelled bool) string {
	if cancelled {
		return " (cancelled)"
	}
	return ""
}
