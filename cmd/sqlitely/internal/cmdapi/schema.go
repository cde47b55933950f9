package cmdapi

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlitely-dev/core/grammar"
)

var schemaFlags struct {
	category string
	name     string
	count    bool
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "List schema items or print one item's CREATE statement",
	Example: `
sqlitely schema --db app.db
sqlitely schema --db app.db --category table --name customer`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFlags.category, "category", "", "table|view|index|trigger (omit to list every category)")
	schemaCmd.Flags().StringVar(&schemaFlags.name, "name", "", "print this item's CREATE statement instead of listing names")
	schemaCmd.Flags().BoolVar(&schemaFlags.count, "count", false, "also print each table's row count (~ prefix marks an estimate)")
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if schemaFlags.name != "" {
		category := grammar.Category(schemaFlags.category)
		item, ok := d.GetItem(category, schemaFlags.name)
		if !ok {
			return fmt.Errorf("no %s named %q", orAny(schemaFlags.category), schemaFlags.name)
		}
		fmt.Fprintln(cmd.OutOrStdout(), item.SQL)
		return nil
	}

	categories := []grammar.Category{grammar.CategoryTable, grammar.CategoryView, grammar.CategoryIndex, grammar.CategoryTrigger}
	if schemaFlags.category != "" {
		categories = []grammar.Category{grammar.Category(schemaFlags.category)}
	}
	for _, category := range categories {
		items := d.GetCategory(category)
		for name := range items {
			if schemaFlags.count && category == grammar.CategoryTable {
				n, estimated, err := d.GetRowCount(ctx, name)
				if err != nil {
					return err
				}
				marker := ""
				if estimated {
					marker = "~"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s%d\n", category, name, marker, n)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", category, name)
		}
	}
	return nil
}

func orAny(category string) string {
	if category == "" {
		return "item"
	}
	return category
}
