// Command sqlitely is a thin CLI over the core library: open a database,
// inspect its schema, run a search query, or export a table, all through
// the same facade a GUI host would use.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sqlitely-dev/core/cmd/sqlitely/internal/cmdapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmdapi.Root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
