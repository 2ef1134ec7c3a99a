package outbox

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
)

var failedLimit int

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List notifications that exhausted their attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		failed, err := app.Operator.ListFailed(cmd.Context(), failedLimit)
		if err != nil {
			return fmt.Errorf("failed to list notifications: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(failed) == 0 {
			fmt.Fprintln(out, "No failed notifications.")
			return nil
		}
		fmt.Fprintf(out, "%-8s %-22s %-10s %-10s %-8s %s\n", "ID", "TYPE", "SUBJECT", "CANDIDATE", "TRIES", "LAST ERROR")
		fmt.Fprintln(out, strings.Repeat("-", 80))
		for _, n := range failed {
			fmt.Fprintf(out, "%-8d %-22s %-10d %-10d %-8d %s\n",
				n.ID(), n.Type(), n.SubjectID(), n.CandidateID(), n.Attempts(), n.LastError())
		}
		return nil
	},
}

func init() {
	failedCmd.Flags().IntVar(&failedLimit, "limit", 50, "maximum rows to show")
}
