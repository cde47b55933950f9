package cmdapi

import (
	"fmt"

	"github.com/spf13/cobra"
)

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Run PRAGMA integrity_check and print any reported problems",
	RunE:  runIntegrity,
}

func runIntegrity(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	msgs, err := d.CheckIntegrity(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}
	for _, m := range msgs {
		fmt.Fprintln(cmd.OutOrStdout(), m)
	}
	return nil
}
