package worker

import (
	"context"

	"github.com/google/uuid"

	"github.com/sqlitely-dev/core/database"
	"github.com/sqlitely-dev/core/search"
)

// Search returns a Task that runs query against d and re-emits each
// search.ResultsChunk as a Result of Kind "search". owner is the caller's
// consumer token (database.Database.RegisterConsumer); search.Run uses it
// to hold the "long read" lock spec.md §4.5 describes for the run's
// duration, and to check for conflicting locks before starting.
func Search(d *database.Database, owner uuid.UUID, query *search.Query, mode search.Mode, caseSensitive bool) Task {
	return func(ctx context.Context, emit ResultFunc) {
		err := search.Run(ctx, d, query, mode, caseSensitive, func(chunk search.ResultsChunk) bool {
			emit(Result{
				Kind:      "search",
				Payload:   chunk,
				Done:      chunk.Done,
				Cancelled: chunk.Cancelled,
			})
			return ctx.Err() == nil
		}, owner)
		if err != nil {
			emit(Result{Kind: "search", Done: true, Err: err})
		}
	}
}
