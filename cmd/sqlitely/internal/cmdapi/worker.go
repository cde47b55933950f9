package cmdapi

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlitely-dev/core/config"
	"github.com/sqlitely-dev/core/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a background worker to completion and print its result",
}

var checksumCmd = &cobra.Command{
	Use:   "checksum [path]",
	Short: "Compute the SHA-1 and MD5 digest of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runChecksum,
}

var detectCmd = &cobra.Command{
	Use:   "detect [root...]",
	Short: "Scan directories for SQLite database files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run sqlite3_analyzer against --db and print per-table stats",
	RunE:  runAnalyze,
}

func init() {
	workerCmd.AddCommand(checksumCmd, detectCmd, analyzeCmd)
}

// runToCompletion submits task to a fresh Worker and blocks until it
// delivers a terminal Result, calling onResult for every emission
// (including the terminal one).
func runToCompletion(ctx context.Context, task worker.Task, onResult func(worker.Result)) {
	w := worker.New()
	done := make(chan struct{})
	w.Submit(ctx, task, func(r worker.Result) {
		onResult(r)
		if r.Done {
			close(done)
		}
	})
	<-done
}

func runChecksum(cmd *cobra.Command, args []string) error {
	var final worker.ChecksumResult
	runToCompletion(cmd.Context(), worker.Checksum(args[0]), func(r worker.Result) {
		if cr, ok := r.Payload.(worker.ChecksumResult); ok {
			final = cr
		}
	})
	fmt.Fprintf(cmd.OutOrStdout(), "sha1=%s md5=%s bytes=%d\n", final.SHA1, final.MD5, final.BytesRead)
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	out := cmd.OutOrStdout()
	runToCompletion(cmd.Context(), worker.DetectDatabase(args, cfg.AllowedExtensions), func(r worker.Result) {
		if d, ok := r.Payload.(worker.DetectedDatabase); ok {
			fmt.Fprintf(out, "%s\t%d\t%s\n", d.Path, d.Size, d.Modified)
		}
	})
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if rootFlags.dbPath == "" {
		return fmt.Errorf("--db is required")
	}
	ctx := cmd.Context()
	d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	owner := d.RegisterConsumer()
	defer d.UnregisterConsumer(owner)

	cfg := config.Default()
	out := cmd.OutOrStdout()
	runToCompletion(ctx, worker.Analyzer(d, owner, cfg.AnalyzerPath, rootFlags.dbPath), func(r worker.Result) {
		if result, ok := r.Payload.(worker.AnalyzerResult); ok {
			for _, t := range result.Tables {
				fmt.Fprintf(out, "%s\tpayload=%d\tunused=%d\tfrag=%.1f%%\n", t.Name, t.PayloadBytes, t.UnusedBytes, t.FragmentedPct)
			}
		}
		if r.Err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), r.Err)
		}
	})
	return nil
}
